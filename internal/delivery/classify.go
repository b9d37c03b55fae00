package delivery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

// Classify maps a delivery error to the category stored on its log row.
func Classify(err error) notification.FailureCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrReservedDomain):
		return notification.FailureReservedTestDomain
	case errors.Is(err, ErrMissingRecipient), errors.Is(err, ErrInvalidPhone):
		return notification.FailureInvalidAddress
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return notification.FailureNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return notification.FailureNetwork
	}

	msg := strings.ToLower(err.Error())

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return notification.FailureAuth
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return notification.FailureQuota
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return notification.FailureNetwork
		}
	}

	switch {
	case containsAny(msg, "spam", "blocked", "blacklist", "suppressed"):
		return notification.FailureBlocked
	case containsAny(msg, "quota", "rate limit", "limit exceeded", "insufficient credit"):
		return notification.FailureQuota
	case containsAny(msg, "unauthorized", "authentication", "api key", "forbidden"):
		return notification.FailureAuth
	case strings.Contains(msg, "invalid") && containsAny(msg, "address", "email", "phone", "number", "recipient"):
		return notification.FailureInvalidAddress
	case containsAny(msg, "timeout", "connection refused", "no such host", "connection reset"):
		return notification.FailureNetwork
	}
	return notification.FailureUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
