package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http/handler"
)

func (s *IntegrationTestSuite) request(method, path string, body any, token string) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)

	return resp
}

func (s *IntegrationTestSuite) adminToken() string {
	pair, err := s.Tokens.Generate(1, "admin@b96.id")
	s.Require().NoError(err)

	return pair.AccessToken
}

func (s *IntegrationTestSuite) TestHTTP_AdminRoutesRequireToken() {
	resp := s.request(http.MethodPost, "/api/admin/products", shirt(), "")
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/admin/categories", map[string]string{"name": "Kaos"}, "garbage")
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_CreateAndGetProduct() {
	body := map[string]any{
		"name":        "Kaos B.96 Classic",
		"description": "Kaos katun combed 30s dengan sablon plastisol.",
		"price":       150000,
		"discount":    25,
		"variants": map[string]any{
			"colors":  []map[string]string{{"name": "Black", "hex": "#000"}},
			"sizes":   []map[string]any{{"name": "M", "active": true}},
			"sleeves": []string{"Short Sleeve"},
			"matrix": map[string]any{
				"Black - M - Lengan Pendek": map[string]int64{"price": 160000, "stock": 4},
			},
		},
	}

	resp := s.request(http.MethodPost, "/api/admin/products", body, s.adminToken())
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created handler.ProductResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	s.Require().NotZero(created.ID)

	resp = s.request(http.MethodGet, "/api/products/"+itoa(created.ID), nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var got struct {
		Price          int64 `json:"price"`
		Stock          int64 `json:"stock"`
		CompareAtPrice int64 `json:"compare_at_price"`
		Combinations   []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"combinations"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&got))
	s.Require().Equal(int64(160000), got.Price)
	s.Require().Equal(int64(4), got.Stock)
	s.Require().Equal(int64(213333), got.CompareAtPrice)
	s.Require().Len(got.Combinations, 1)
	s.Require().Equal("color=black;size=m;sleeve=short", got.Combinations[0].Key)
	s.Require().Equal("Black - M - Short Sleeve", got.Combinations[0].Label)
}

func (s *IntegrationTestSuite) TestHTTP_ValidationAndNotFound() {
	resp := s.request(http.MethodPost, "/api/admin/products", map[string]any{"name": "ab"}, s.adminToken())
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/products/12345", nil, "")
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/products/abc", nil, "")
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_Categories() {
	token := s.adminToken()

	resp := s.request(http.MethodPost, "/api/admin/categories", map[string]string{"name": "Apparel", "subtitle": "Kaos dan jaket"}, token)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/admin/categories", map[string]string{"name": "apparel"}, token)
	s.Require().Equal(http.StatusConflict, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/categories", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&list))
	s.Require().Len(list.Items, 1)

	resp = s.request(http.MethodPost, "/api/admin/categories", map[string]string{"name": "Aksesoris"}, token)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/categories", nil, "")
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&list))
	s.Require().Len(list.Items, 2)
	s.Require().Equal("Aksesoris", list.Items[0].Name)
}
