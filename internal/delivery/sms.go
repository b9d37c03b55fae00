package delivery

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

// MaxSMSLength is the single-segment GSM limit.
const MaxSMSLength = 160

var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type SMSClient struct {
	http        *resty.Client
	breaker     *gobreaker.CircuitBreaker[*resty.Response]
	sender      string
	countryCode string
	log         *zap.Logger
}

func NewSMSClient(cfg config.DeliveryConfig, log *zap.Logger) *SMSClient {
	return &SMSClient{
		http:        newHTTPClient(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.Timeout),
		breaker:     newBreaker("sms", log),
		sender:      cfg.SMSSender,
		countryCode: cfg.DefaultCountryCode,
		log:         log.Named("sms"),
	}
}

func (c *SMSClient) Channel() notification.Channel {
	return notification.ChannelSMS
}

// Send normalises the number and truncates the body before calling the gateway.
func (c *SMSClient) Send(ctx context.Context, msg Message) (string, error) {
	to, err := NormalizePhone(msg.To, c.countryCode)
	if err != nil {
		return "", err
	}

	var out smsResponse
	err = post(ctx, c.breaker, c.http, "sms", "/messages", smsRequest{
		From: c.sender,
		To:   to,
		Text: FitSMS(msg.Body),
	}, &out)
	if err != nil {
		c.log.Warn("sms delivery failed", zap.String("to", to), zap.Error(err))
		return "", err
	}
	return out.MessageID, nil
}

// NormalizePhone converts a local or international number to E.164. A leading
// "00" becomes "+", a leading "0" is replaced by countryCode, and bare digits
// are prefixed with it.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')' || r == '/':
		default:
			return "", ErrInvalidPhone
		}
	}
	n := b.String()
	if n == "" {
		return "", ErrMissingRecipient
	}

	switch {
	case strings.HasPrefix(n, "+"):
	case strings.HasPrefix(n, "00"):
		n = "+" + n[2:]
	case strings.HasPrefix(n, "0"):
		n = countryCode + n[1:]
	default:
		n = countryCode + n
	}

	if !e164.MatchString(n) {
		return "", ErrInvalidPhone
	}
	return n, nil
}

// FitSMS truncates body to MaxSMSLength characters, ending in "..." when cut.
func FitSMS(body string) string {
	r := []rune(body)
	if len(r) <= MaxSMSLength {
		return body
	}
	return string(r[:MaxSMSLength-3]) + "..."
}
