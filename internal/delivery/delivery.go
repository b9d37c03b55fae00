// Package delivery sends outbound email and SMS through HTTP vendor APIs.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

var (
	ErrReservedDomain   = errors.New("recipient uses a reserved test domain")
	ErrMissingRecipient = errors.New("recipient address is empty")
	ErrInvalidPhone     = errors.New("phone number cannot be normalised to E.164")
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message and returns the vendor's message id.
type Sender interface {
	Channel() notification.Channel
	Send(ctx context.Context, msg Message) (string, error)
}

// APIError is a non-2xx vendor response.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

func newHTTPClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker[*resty.Response] {
	return gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// Vendor rejections of a single message say nothing about vendor health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("delivery circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// post runs one vendor call through the breaker and converts non-2xx replies to *APIError.
func post(ctx context.Context, cb *gobreaker.CircuitBreaker[*resty.Response], c *resty.Client, provider, path string, body, result any) error {
	_, err := cb.Execute(func() (*resty.Response, error) {
		resp, err := c.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(result).
			Post(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, &APIError{Provider: provider, StatusCode: resp.StatusCode(), Message: resp.String()}
		}
		return resp, nil
	})
	return err
}

// LogSender stands in for a vendor that is not configured; it logs and reports success.
type LogSender struct {
	channel notification.Channel
	log     *zap.Logger
}

func NewLogSender(ch notification.Channel, log *zap.Logger) *LogSender {
	return &LogSender{channel: ch, log: log.Named("delivery")}
}

func (s *LogSender) Channel() notification.Channel {
	return s.channel
}

func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrMissingRecipient
	}
	s.log.Info("outbound delivery not configured, message logged only",
		zap.String("channel", string(s.channel)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return "LOG-" + uuid.NewString(), nil
}
