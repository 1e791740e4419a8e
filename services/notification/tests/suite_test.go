package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Arsyadam/bhawikarsu-store/pkg/testsuite"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/infrastructure/email"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/service"
	notificationKafka "github.com/Arsyadam/bhawikarsu-store/services/notification/internal/transport/kafka"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var errSMTPDown = errors.New("smtp down")

// recordingSender keeps every delivered message and fails the first
// failures calls.
type recordingSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []domain.Message
}

func (r *recordingSender) Send(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.failures > 0 {
		r.failures--
		return errSMTPDown
	}

	r.sent = append(r.sent, msg)

	return nil
}

func (r *recordingSender) Sent() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.Message(nil), r.sent...)
}

func (r *recordingSender) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	Sender   *recordingSender
	Service  *service.NotificationService
	Consumer *notificationKafka.Consumer
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../migrations")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTables("processed_events")

	logger := zap.NewNop()

	renderer, err := email.NewRenderer("https://store.example")
	s.Require().NoError(err)

	s.Sender = &recordingSender{}
	s.Service = service.NewNotificationService(s.Sender, renderer, s.DbPool, logger)
	s.Consumer = notificationKafka.NewConsumer(s.Service, logger)
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
