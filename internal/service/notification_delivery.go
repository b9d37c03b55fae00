package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/delivery"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

// smsReasonLimit is the body length under which a cancellation SMS still carries its reason.
const smsReasonLimit = 150

// outbound is one email or SMS ready to send.
type outbound struct {
	userID   uuid.UUID
	to       string
	subject  string
	body     string
	metadata map[string]any
	// externalID overrides the vendor id on the log row. It receives the vendor
	// id and whether the send succeeded.
	externalID func(vendorID string, ok bool) string
}

// send delivers msg on sender and appends a NotificationLog row with the
// outcome. Delivery failures are recorded, not returned.
func (s *NotificationService) send(ctx context.Context, sender delivery.Sender, msg outbound) bool {
	ch := sender.Channel()
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	vendorID, err := sender.Send(ctx, delivery.Message{To: msg.to, Subject: msg.subject, Body: msg.body})

	userID := msg.userID
	entry := &notification.Log{
		UserID:    &userID,
		Channel:   ch,
		Recipient: msg.to,
		Subject:   msg.subject,
		Message:   notification.Snippet(msg.body, 500),
		Status:    notification.LogSent,
	}
	meta := map[string]any{}
	for k, v := range msg.metadata {
		meta[k] = v
	}

	if err != nil {
		entry.Status = notification.LogFailed
		entry.ErrorMessage = err.Error()
		entry.FailureCategory = delivery.Classify(err)
		meta["failure_category"] = entry.FailureCategory
		s.log.Warn("outbound delivery failed",
			zap.String("channel", string(ch)),
			zap.String("user_id", userID.String()),
			zap.String("category", string(entry.FailureCategory)),
			zap.Error(err),
		)
	}
	if vendorID != "" {
		meta["vendor_id"] = vendorID
	}
	entry.ExternalID = vendorID
	if msg.externalID != nil {
		entry.ExternalID = msg.externalID(vendorID, err == nil)
	}
	if len(meta) > 0 {
		if raw, mErr := json.Marshal(meta); mErr == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}

	// The log row must survive a send that timed out.
	if lErr := s.repo.CreateLog(context.WithoutCancel(ctx), entry); lErr != nil {
		s.log.Error("failed to write notification log", zap.Error(lErr))
	}
	s.metrics.NotificationsTotal.WithLabelValues(string(ch), string(entry.Status)).Inc()
	return err == nil
}

// deliverCancellation sends the out-of-band cancellation email and SMS to the
// patient, the provider and the patient's family.
func (s *NotificationService) deliverCancellation(ctx context.Context, p parties, snap *notification.ScheduleSnapshot, reason string) {
	ids := uniqueExcept(p.all(), nil)
	if len(ids) == 0 {
		return
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Error("loading cancellation recipients", zap.Error(err))
		return
	}

	date := snap.Date.Format("02/01/2006")
	window := ""
	if w, ok := snap.FirstSlot(); ok {
		window = fmt.Sprintf(" %s-%s", w.Start, w.End)
	}

	for _, u := range users {
		pref, err := s.preference(ctx, u.ID)
		if err != nil {
			s.log.Error("loading preference for cancellation delivery", zap.String("user_id", u.ID.String()), zap.Error(err))
			continue
		}
		if !pref.AppointmentReminders {
			continue
		}
		meta := map[string]any{
			"type":        string(notification.TypeScheduleCancelled),
			"schedule_id": snap.ScheduleID.String(),
		}

		if pref.EmailNotifications && u.Email != "" && s.email != nil {
			body := fmt.Sprintf("Hello %s,\n\nYour appointment on %s%s has been cancelled.", u.FirstName, date, window)
			if reason != "" {
				body += "\nReason: " + reason
			}
			body += "\n\nCareLink"
			s.send(ctx, s.email, outbound{
				userID:   u.ID,
				to:       u.Email,
				subject:  "Appointment cancelled - " + date,
				body:     body,
				metadata: meta,
			})
		}

		if pref.SMSNotifications && s.sms != nil {
			phone := primaryPhone(pref, u)
			if phone == "" {
				s.log.Info("cancellation sms skipped: no phone", zap.String("user_id", u.ID.String()))
				continue
			}
			s.send(ctx, s.sms, outbound{
				userID:   u.ID,
				to:       phone,
				body:     cancellationSMS(date+window, reason),
				metadata: meta,
			})
		}
	}
}

// cancellationSMS keeps the reason only while the message stays under smsReasonLimit.
func cancellationSMS(when, reason string) string {
	base := fmt.Sprintf("CareLink: your appointment on %s is cancelled.", when)
	if reason != "" {
		withReason := base + " Reason: " + reason
		if len([]rune(withReason)) < smsReasonLimit {
			return withReason
		}
	}
	return delivery.FitSMS(base)
}

func primaryPhone(pref *notification.Preference, u *domain.User) string {
	if p := strings.TrimSpace(pref.PrimaryPhone); p != "" {
		return p
	}
	return strings.TrimSpace(u.Phone)
}

func dayLabel(d string) string {
	t, err := schedule.ParseDate(d)
	if err != nil {
		return d
	}
	return t.Format("Monday 02/01/2006")
}
