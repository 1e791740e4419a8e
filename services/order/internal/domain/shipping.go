package domain

import "errors"

var ErrShippingUnavailable = errors.New("shipping rate unavailable")

const (
	DefaultWeightGrams = 500
	DefaultDimensionCm = 10
)

type AreaType string

const (
	AreaProvince AreaType = "province"
	AreaCity     AreaType = "city"
	AreaDistrict AreaType = "district"
)

type Area struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code,omitempty"`
	Level1Name  string `json:"administrative_division_level_1_name,omitempty"`
	Level2Name  string `json:"administrative_division_level_2_name,omitempty"`
	Level3Name  string `json:"administrative_division_level_3_name,omitempty"`
	PostalCode  int    `json:"postal_code,omitempty"`
}

type RateItem struct {
	Name     string `json:"name"`
	Value    int64  `json:"value"`
	Weight   int    `json:"weight"`
	Quantity int64  `json:"quantity"`
	Length   int    `json:"length"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type RatesRequest struct {
	OriginAreaID      string     `json:"origin_area_id"`
	DestinationAreaID string     `json:"destination_area_id"`
	Couriers          string     `json:"couriers"`
	Items             []RateItem `json:"items"`
}

type Rate struct {
	CourierName        string `json:"courier_name"`
	CourierCode        string `json:"courier_code"`
	CourierServiceName string `json:"courier_service_name"`
	CourierServiceCode string `json:"courier_service_code"`
	Description        string `json:"description"`
	Duration           string `json:"duration"`
	Price              int64  `json:"price"`
	Type               string `json:"type"`
}

// RateItems builds the parcel list for a rate request from quoted lines.
func RateItems(lines []QuoteLine) []RateItem {
	items := make([]RateItem, 0, len(lines))
	for _, l := range lines {
		weight := l.WeightGrams
		if weight <= 0 {
			weight = DefaultWeightGrams
		}

		items = append(items, RateItem{
			Name:     l.Name,
			Value:    l.UnitPrice,
			Weight:   weight,
			Quantity: l.Quantity,
			Length:   DefaultDimensionCm,
			Width:    DefaultDimensionCm,
			Height:   DefaultDimensionCm,
		})
	}

	return items
}

// Choose returns the rate matching courier and service codes.
func Choose(rates []Rate, courierCode, serviceCode string) (*ShippingChoice, bool) {
	for _, r := range rates {
		if r.CourierCode == courierCode && r.CourierServiceCode == serviceCode {
			return &ShippingChoice{
				CourierCode: r.CourierCode,
				ServiceCode: r.CourierServiceCode,
				CourierName: r.CourierName,
				ServiceName: r.CourierServiceName,
				Cost:        r.Price,
			}, true
		}
	}

	return nil, false
}
