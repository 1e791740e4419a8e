package tests

import (
	"testing"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/httpserver"
	"github.com/Arsyadam/bhawikarsu-store/pkg/metrics"
	"github.com/Arsyadam/bhawikarsu-store/pkg/testsuite"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/service"
	catalogHttp "github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/http/handler"
	catalogKafka "github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/transport/kafka"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	ProductService       service.ProductService
	CachedProductService service.ProductService
	CategoryService      service.CategoryService
	Consumer             *catalogKafka.Consumer
	Tokens               *auth.TokenManager
	App                  *fiber.App
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../migrations", testsuite.WithRedis())
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTables("products", "categories", "processed_events")

	logger := zap.NewNop()
	productRepo := repository.NewProductRepository(s.DbPool, logger)
	categoryRepo := repository.NewCategoryRepository(s.DbPool, logger)

	s.ProductService = service.NewProductService(productRepo, s.DbPool, logger)
	s.CachedProductService = service.NewCachedProductService(s.ProductService, s.Redis, logger)
	s.CategoryService = service.NewCachedCategoryService(service.NewCategoryService(categoryRepo, logger), s.Redis, logger)
	s.Consumer = catalogKafka.NewConsumer(s.CachedProductService, logger)

	var err error
	s.Tokens, err = auth.NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	s.Require().NoError(err)

	s.App = httpserver.New("Catalog Service", metrics.NewRegistry("catalog_test"))
	catalogHttp.RegisterRoutes(
		s.App,
		&catalogHttp.Handlers{
			Product:  handler.NewProductHandler(s.CachedProductService, 2*time.Second, logger),
			Category: handler.NewCategoryHandler(s.CategoryService, 2*time.Second, logger),
		},
		httpserver.Limiter(config.Limiter{Max: 1000, Window: time.Second}),
		auth.NewAdminMiddleware(s.Tokens),
	)
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
