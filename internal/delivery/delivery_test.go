package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

func testConfig(url string) config.DeliveryConfig {
	return config.DeliveryConfig{
		EmailAPIURL:        url,
		EmailAPIKey:        "email-key",
		EmailFrom:          "no-reply@carelink.be",
		EmailFromName:      "CareLink",
		SMSAPIURL:          url,
		SMSAPIKey:          "sms-key",
		SMSSender:          "CareLink",
		DefaultCountryCode: "+32",
		Timeout:            2 * time.Second,
	}
}

func TestEmailClient_Send(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, "Bearer email-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-42"}`))
	}))
	defer srv.Close()

	c := NewEmailClient(testConfig(srv.URL), zap.NewNop())
	id, err := c.Send(context.Background(), Message{To: "anna@carelink.be", Subject: "Hello", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)
	assert.Equal(t, "anna@carelink.be", got.To[0].Email)
	assert.Equal(t, "no-reply@carelink.be", got.From.Email)
	assert.Equal(t, "Hello", got.Subject)
}

func TestEmailClient_ReservedDomainNeverCallsVendor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewEmailClient(testConfig(srv.URL), zap.NewNop())
	_, err := c.Send(context.Background(), Message{To: "patient@example.com", Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, ErrReservedDomain)
	assert.Equal(t, notification.FailureReservedTestDomain, Classify(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmailClient_VendorRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad api key"}`))
	}))
	defer srv.Close()

	c := NewEmailClient(testConfig(srv.URL), zap.NewNop())
	c.http.SetRetryCount(0)
	_, err := c.Send(context.Background(), Message{To: "anna@carelink.be", Subject: "x", Body: "y"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, notification.FailureAuth, Classify(err))
}

func TestEmailClient_TimeoutIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	c := NewEmailClient(cfg, zap.NewNop())
	c.http.SetRetryCount(0)

	_, err := c.Send(context.Background(), Message{To: "anna@carelink.be", Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Equal(t, notification.FailureNetwork, Classify(err))
}

func TestSMSClient_SendNormalisesAndTruncates(t *testing.T) {
	var got smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"sms-7","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewSMSClient(testConfig(srv.URL), zap.NewNop())
	id, err := c.Send(context.Background(), Message{To: "0470 12 34 56", Body: strings.Repeat("a", 200)})
	require.NoError(t, err)
	assert.Equal(t, "sms-7", id)
	assert.Equal(t, "+32470123456", got.To)
	assert.Len(t, got.Text, MaxSMSLength)
	assert.True(t, strings.HasSuffix(got.Text, "..."))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  error
	}{
		{"0470123456", "+32470123456", nil},
		{"+32 470 12 34 56", "+32470123456", nil},
		{"0032470123456", "+32470123456", nil},
		{"470123456", "+32470123456", nil},
		{"(0470) 12-34-56", "+32470123456", nil},
		{"", "", ErrMissingRecipient},
		{"call me", "", ErrInvalidPhone},
		{"012", "", ErrInvalidPhone},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in, "+32")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFitSMS(t *testing.T) {
	assert.Equal(t, "short", FitSMS("short"))
	exact := strings.Repeat("x", MaxSMSLength)
	assert.Equal(t, exact, FitSMS(exact))
	long := FitSMS(strings.Repeat("é", MaxSMSLength+1))
	assert.Equal(t, MaxSMSLength, len([]rune(long)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want notification.FailureCategory
	}{
		{&APIError{Provider: "sms", StatusCode: 429, Message: "slow down"}, notification.FailureQuota},
		{&APIError{Provider: "email", StatusCode: 400, Message: "Invalid email address"}, notification.FailureInvalidAddress},
		{&APIError{Provider: "email", StatusCode: 400, Message: "recipient is on the spam list"}, notification.FailureBlocked},
		{&APIError{Provider: "email", StatusCode: 503, Message: "unavailable"}, notification.FailureNetwork},
		{context.DeadlineExceeded, notification.FailureNetwork},
		{errors.New("monthly quota exceeded"), notification.FailureQuota},
		{errors.New("something odd"), notification.FailureUnknown},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.err), tc.err.Error())
	}
	assert.Empty(t, Classify(nil))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(notification.ChannelSMS, zap.NewNop())
	id, err := s.Send(context.Background(), Message{To: "+32470123456", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "LOG-"))
	assert.Equal(t, notification.ChannelSMS, s.Channel())
}
