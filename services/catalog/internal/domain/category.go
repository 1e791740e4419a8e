package domain

import "time"

type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,min=2,max=60"`
	Subtitle  string    `db:"subtitle" json:"subtitle" validate:"max=200"`
	ImageURL  string    `db:"image_url" json:"image_url" validate:"omitempty,url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
