package delivery

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailRequest struct {
	From    emailAddress   `json:"from"`
	To      []emailAddress `json:"to"`
	Subject string         `json:"subject"`
	Text    string         `json:"text"`
}

type emailResponse struct {
	ID string `json:"id"`
}

type EmailClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	from    emailAddress
	log     *zap.Logger
}

func NewEmailClient(cfg config.DeliveryConfig, log *zap.Logger) *EmailClient {
	return &EmailClient{
		http:    newHTTPClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.Timeout),
		breaker: newBreaker("email", log),
		from:    emailAddress{Email: cfg.EmailFrom, Name: cfg.EmailFromName},
		log:     log.Named("email"),
	}
}

func (c *EmailClient) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (c *EmailClient) Send(ctx context.Context, msg Message) (string, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return "", ErrMissingRecipient
	}
	if IsReservedDomain(to) {
		return "", ErrReservedDomain
	}

	var out emailResponse
	err := post(ctx, c.breaker, c.http, "email", "/send", emailRequest{
		From:    c.from,
		To:      []emailAddress{{Email: to}},
		Subject: msg.Subject,
		Text:    msg.Body,
	}, &out)
	if err != nil {
		c.log.Warn("email delivery failed", zap.String("to", to), zap.Error(err))
		return "", err
	}
	return out.ID, nil
}

var reservedSuffixes = []string{
	"@example.com", "@example.org", "@example.net",
	".example", ".test", ".invalid", ".localhost", "@localhost",
}

// IsReservedDomain reports addresses under RFC 2606 names, which never receive mail.
func IsReservedDomain(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, s := range reservedSuffixes {
		if strings.HasSuffix(e, s) {
			return true
		}
	}
	return false
}
