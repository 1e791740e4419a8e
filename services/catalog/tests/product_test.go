package tests

import (
	"context"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
)

func shirt() *domain.Product {
	return &domain.Product{
		Name:        "Kaos B.96 Classic",
		Description: "Kaos katun combed 30s dengan sablon plastisol.",
		Price:       150000,
		Discount:    25,
		Categories:  []string{"Apparel", "apparel", "Kaos"},
		Images:      []string{"https://cdn.example.com/kaos.jpg"},
		Variants: &domain.VariantSpec{
			Colors:  []domain.Color{{Name: "Black", Hex: "#000"}},
			Sizes:   []domain.Size{{Name: "M", Active: true}, {Name: "L", Active: true}},
			Sleeves: []string{"Lengan Pendek"},
			Matrix: variant.Matrix{
				variant.Selection{Color: "Black", Size: "M", Sleeve: "short"}.Key(): {Price: 160000, Stock: 3},
				variant.Selection{Color: "Black", Size: "L", Sleeve: "short"}.Key(): {Price: 175000, Stock: 2},
			},
		},
	}
}

func (s *IntegrationTestSuite) TestCreateProduct_Success() {
	product := shirt()

	id, err := s.ProductService.Create(s.Ctx, product)
	s.Require().NoError(err)
	s.Require().NotZero(id)

	var dbName string
	var dbPrice, dbStock int64

	err = s.DbPool.QueryRow(s.Ctx, `SELECT name, price, stock FROM products WHERE id = $1`, id).
		Scan(&dbName, &dbPrice, &dbStock)
	s.Require().NoError(err)
	s.Require().Equal(product.Name, dbName)
	s.Require().Equal(int64(160000), dbPrice)
	s.Require().Equal(int64(5), dbStock)

	found, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal([]string{"Apparel", "Kaos"}, found.Categories)
	s.Require().Equal([]string{variant.SleeveShort}, found.Variants.Sleeves)
	s.Require().Len(found.Variants.Matrix, 2)
	s.Require().Equal(domain.DefaultWeightGrams, found.WeightGrams)
}

func (s *IntegrationTestSuite) TestCreateProduct_InvalidRejected() {
	product := shirt()
	product.Variants.Matrix[variant.Selection{Color: "Red", Size: "M", Sleeve: "short"}.Key()] = variant.Entry{Price: 1, Stock: 1}

	id, err := s.ProductService.Create(s.Ctx, product)
	s.Require().ErrorIs(err, domain.ErrUnknownVariant)
	s.Require().Zero(id)

	var count int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM products`).Scan(&count))
	s.Require().Zero(count)
}

func (s *IntegrationTestSuite) TestCreateProductContextTimeout_Failed() {
	ctxTimeout, cancel := context.WithTimeout(s.Ctx, time.Nanosecond)
	defer cancel()

	time.Sleep(time.Millisecond)

	id, err := s.ProductService.Create(ctxTimeout, shirt())
	s.Require().Error(err)
	s.Require().Zero(id)
}

func (s *IntegrationTestSuite) TestFindByID_Cached() {
	id, err := s.CachedProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	created, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(id, created.ID)

	val, err := s.Redis.Get(s.Ctx, "product:"+itoa(id)).Result()
	s.Require().NoError(err)
	s.Require().NotEmpty(val)

	name := "Kaos B.96 Reborn"
	_, err = s.CachedProductService.Update(s.Ctx, id, &domain.UpdateProductInput{Name: &name})
	s.Require().NoError(err)

	exists, err := s.Redis.Exists(s.Ctx, "product:"+itoa(id)).Result()
	s.Require().NoError(err)
	s.Require().Zero(exists)

	updated, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(name, updated.Name)
}

func (s *IntegrationTestSuite) TestFindByID_Failure() {
	product, err := s.CachedProductService.FindByID(s.Ctx, 999)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
	s.Require().Nil(product)
}

func (s *IntegrationTestSuite) TestDelete_SoftDeletes() {
	id, err := s.CachedProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	s.Require().NoError(s.CachedProductService.Delete(s.Ctx, id))

	_, err = s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)

	s.Require().ErrorIs(s.CachedProductService.Delete(s.Ctx, id), repository.ErrProductNotFound)

	var deleted bool
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT deleted_at IS NOT NULL FROM products WHERE id = $1`, id).Scan(&deleted))
	s.Require().True(deleted)
}

func (s *IntegrationTestSuite) TestProductList_FiltersAndCounts() {
	tote := &domain.Product{
		Name:        "Tote Bag B.96",
		Description: "Tote bag kanvas dengan logo komunitas.",
		Price:       85000,
		Stock:       10,
		Categories:  []string{"Aksesoris"},
	}

	for _, p := range []*domain.Product{shirt(), tote} {
		_, err := s.ProductService.Create(s.Ctx, p)
		s.Require().NoError(err)
	}

	all, total, err := s.ProductService.List(s.Ctx, domain.ListFilter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Equal(int64(2), total)
	s.Require().Len(all, 2)
	s.Require().Equal(tote.Name, all[0].Name)

	byCategory, total, err := s.ProductService.List(s.Ctx, domain.ListFilter{Category: "apparel", Limit: 10})
	s.Require().NoError(err)
	s.Require().Equal(int64(1), total)
	s.Require().Equal("Kaos B.96 Classic", byCategory[0].Name)

	bySearch, total, err := s.ProductService.List(s.Ctx, domain.ListFilter{Search: "tote", Limit: 10})
	s.Require().NoError(err)
	s.Require().Equal(int64(1), total)
	s.Require().Equal(tote.Name, bySearch[0].Name)

	page, total, err := s.ProductService.List(s.Ctx, domain.ListFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Equal(int64(2), total)
	s.Require().Len(page, 1)
}
