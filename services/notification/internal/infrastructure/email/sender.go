package email

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, msg domain.Message) error
}

// NewSender returns an SMTP sender, or a sender that only logs when no SMTP
// host is configured.
func NewSender(cfg config.SMTP, logger *zap.Logger) Sender {
	tracer := otel.Tracer("notification/infrastructure/email")

	if cfg.Host == "" {
		return &logSender{logger: logger, tracer: tracer}
	}

	return &smtpSender{
		from:     cfg.User,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   logger,
		tracer:   tracer,
	}
}

type smtpSender struct {
	from     string
	password string
	host     string
	port     string
	logger   *zap.Logger
	tracer   trace.Tracer
}

func (s *smtpSender) Send(ctx context.Context, msg domain.Message) error {
	ctx, span := s.tracer.Start(ctx, "smtp.Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", msg.To),
		attribute.String("subject", msg.Subject),
	)

	addr := net.JoinHostPort(s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	mylogger.Info(ctx, s.logger, "Sending email", zap.String("to", msg.To), zap.String("subject", msg.Subject))

	if err := smtp.SendMail(addr, auth, s.from, []string{msg.To}, compose(s.from, msg)); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error sending email", zap.String("to", msg.To), zap.Error(err))

		return fmt.Errorf("failed to send mail: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Email sent successfully", zap.String("to", msg.To))

	return nil
}

func compose(from string, msg domain.Message) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)

	return []byte(b.String())
}

type logSender struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func (s *logSender) Send(ctx context.Context, msg domain.Message) error {
	ctx, span := s.tracer.Start(ctx, "log.Send")
	defer span.End()

	mylogger.Info(
		ctx,
		s.logger,
		"SMTP not configured, email logged only",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)

	return nil
}
