package repository

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryAlreadyExist = errors.New("category already exists")
)
