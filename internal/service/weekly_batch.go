package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/delivery"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/tracer"
)

// WeekWindow returns the Sunday-to-Saturday week containing now, shifted by offset weeks.
func WeekWindow(now time.Time, offset int) (time.Time, time.Time) {
	today := schedule.DateOnly(now)
	start := today.AddDate(0, 0, -int(today.Weekday())+7*offset)
	return start, start.AddDate(0, 0, 6)
}

// ParseBatchChannels maps email, sms or both to the channels to send on.
func ParseBatchChannels(s string) ([]notification.Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return []notification.Channel{notification.ChannelEmail, notification.ChannelSMS}, nil
	case "email":
		return []notification.Channel{notification.ChannelEmail}, nil
	case "sms":
		return []notification.Channel{notification.ChannelSMS}, nil
	}
	return nil, notification.ErrInvalidChannel
}

type BatchSkip struct {
	UserID  uuid.UUID            `json:"user_id"`
	Channel notification.Channel `json:"channel"`
	Reason  string               `json:"reason"`
}

type WeeklyBatchResult struct {
	WeekStart  string      `json:"week_start"`
	WeekEnd    string      `json:"week_end"`
	Recipients int         `json:"recipients"`
	Sent       int         `json:"sent"`
	Failed     int         `json:"failed"`
	Skipped    []BatchSkip `json:"skipped"`
}

type weeklyItem struct {
	date        string
	start, end  schedule.Clock
	counterpart string
	description string
}

type weeklyRecipient struct {
	user  *domain.User
	items []weeklyItem
}

// WeeklyBatch sends one summary per patient and per provider listing their
// scheduled and confirmed appointments of the target week. Cancellation is
// honoured between recipients.
func (s *NotificationService) WeeklyBatch(ctx context.Context, weekOffset int, channels []notification.Channel) (*WeeklyBatchResult, error) {
	if weekOffset < 0 {
		return nil, notification.ErrInvalidWeekOffset
	}
	ctx, span := tracer.Start(ctx, "notification.weekly_batch")
	defer span.End()

	now := s.now()
	from, to := WeekWindow(now, weekOffset)
	result := &WeeklyBatchResult{
		WeekStart: from.Format(schedule.DateFormat),
		WeekEnd:   to.Format(schedule.DateFormat),
		Skipped:   []BatchSkip{},
	}

	recipients, err := s.weeklyRecipients(ctx, from, to)
	if err != nil {
		return nil, tracer.Fail(span, err)
	}
	result.Recipients = len(recipients)

	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			s.log.Warn("weekly batch cancelled", zap.Int("sent", result.Sent), zap.Error(err))
			return result, err
		}

		pref, err := s.preference(ctx, r.user.ID)
		if err != nil {
			s.log.Warn("weekly summary preferences unavailable", zap.String("user_id", r.user.ID.String()), zap.Error(err))
			for _, ch := range channels {
				result.Skipped = append(result.Skipped, BatchSkip{UserID: r.user.ID, Channel: ch, Reason: "preferences unavailable"})
			}
			continue
		}

		for _, ch := range channels {
			skip := func(reason string) {
				result.Skipped = append(result.Skipped, BatchSkip{UserID: r.user.ID, Channel: ch, Reason: reason})
				s.log.Info("weekly summary skipped",
					zap.String("user_id", r.user.ID.String()),
					zap.String("channel", string(ch)),
					zap.String("reason", reason),
				)
			}
			if !pref.PreferredContactMethod.Includes(ch) {
				skip("preferred contact method does not include " + string(ch))
				continue
			}

			msg := outbound{
				userID:   r.user.ID,
				metadata: map[string]any{"type": "weekly_summary", "week_start": result.WeekStart, "appointments": len(r.items)},
			}
			var sender delivery.Sender
			switch ch {
			case notification.ChannelEmail:
				if r.user.Email == "" {
					skip("missing email")
					continue
				}
				sender = s.email
				msg.to = r.user.Email
				msg.subject = fmt.Sprintf("Your appointments for the week of %s", from.Format("02/01/2006"))
				msg.body = renderWeeklyEmail(r, from)
			case notification.ChannelSMS:
				phone := primaryPhone(pref, r.user)
				if phone == "" {
					skip("missing phone")
					continue
				}
				sender = s.sms
				msg.to = phone
				msg.body = renderWeeklySMS(r)
			}
			if sender == nil {
				skip(string(ch) + " channel not configured")
				continue
			}

			prefix := strings.ToUpper(string(ch)) + "-WEEKLY-"
			userID, stamp := r.user.ID, now.Unix()
			msg.externalID = func(_ string, ok bool) string {
				if ok {
					return fmt.Sprintf("%s%s-%d", prefix, userID, stamp)
				}
				return fmt.Sprintf("%sFAILED-%s-%d", prefix, userID, stamp)
			}

			if s.send(ctx, sender, msg) {
				result.Sent++
			} else {
				result.Failed++
			}
		}
	}

	s.log.Info("weekly batch finished",
		zap.String("week_start", result.WeekStart),
		zap.Int("recipients", result.Recipients),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// weeklyRecipients groups the upcoming slots of the window by patient user and
// by provider user. Schedules whose patient or provider is inactive are left out.
func (s *NotificationService) weeklyRecipients(ctx context.Context, from, to time.Time) ([]*weeklyRecipient, error) {
	schedules, err := s.schedules.List(ctx, &schedule.ListQuery{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}

	var patientIDs, providerIDs []uuid.UUID
	for _, sc := range schedules {
		if sc.PatientID == nil {
			continue
		}
		patientIDs = append(patientIDs, *sc.PatientID)
		providerIDs = append(providerIDs, sc.ProviderID)
	}
	if len(patientIDs) == 0 {
		return nil, nil
	}

	patients, err := s.patients.GetByIDs(ctx, uniqueExcept(patientIDs, nil))
	if err != nil {
		return nil, fmt.Errorf("loading patients: %w", err)
	}
	providers, err := s.providers.GetByIDs(ctx, uniqueExcept(providerIDs, nil))
	if err != nil {
		return nil, fmt.Errorf("loading providers: %w", err)
	}
	patientByID := make(map[uuid.UUID]*patient.Patient, len(patients))
	providerByID := make(map[uuid.UUID]*provider.Provider, len(providers))
	var userIDList []uuid.UUID
	for _, p := range patients {
		patientByID[p.ID] = p
		userIDList = append(userIDList, p.UserID)
	}
	for _, p := range providers {
		providerByID[p.ID] = p
		userIDList = append(userIDList, p.UserID)
	}
	users, err := s.users.GetByIDs(ctx, uniqueExcept(userIDList, nil))
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	userByID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	groups := make(map[uuid.UUID]*weeklyRecipient)
	add := func(u *domain.User, item weeklyItem) {
		r, ok := groups[u.ID]
		if !ok {
			r = &weeklyRecipient{user: u}
			groups[u.ID] = r
		}
		r.items = append(r.items, item)
	}

	for _, sc := range schedules {
		if sc.PatientID == nil {
			continue
		}
		pat, prov := patientByID[*sc.PatientID], providerByID[sc.ProviderID]
		if pat == nil || prov == nil || !pat.IsActive() || prov.DeletedAt != nil {
			continue
		}
		patUser, provUser := userByID[pat.UserID], userByID[prov.UserID]
		if patUser == nil || provUser == nil || patUser.IsAnonymized() || provUser.IsAnonymized() {
			continue
		}
		for _, t := range sc.TimeSlots {
			if !t.Status.Upcoming() {
				continue
			}
			base := weeklyItem{date: sc.DateString(), start: t.StartTime, end: t.EndTime, description: t.Description}
			forPatient, forProvider := base, base
			forPatient.counterpart = provUser.FullName()
			forProvider.counterpart = patUser.FullName()
			if patUser.IsActive {
				add(patUser, forPatient)
			}
			if provUser.IsActive {
				add(provUser, forProvider)
			}
		}
	}

	out := make([]*weeklyRecipient, 0, len(groups))
	for _, r := range groups {
		sort.Slice(r.items, func(i, j int) bool {
			if r.items[i].date != r.items[j].date {
				return r.items[i].date < r.items[j].date
			}
			return r.items[i].start < r.items[j].start
		})
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].user.ID.String() < out[j].user.ID.String() })
	return out, nil
}

func renderWeeklyEmail(r *weeklyRecipient, weekStart time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nHere are your appointments for the week of %s:\n", r.user.FirstName, weekStart.Format("02/01/2006"))
	day := ""
	for _, it := range r.items {
		if it.date != day {
			day = it.date
			fmt.Fprintf(&b, "\n%s\n", dayLabel(day))
		}
		fmt.Fprintf(&b, "  %s-%s with %s", it.start, it.end, it.counterpart)
		if it.description != "" {
			fmt.Fprintf(&b, " (%s)", it.description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nCareLink\n")
	return b.String()
}

func renderWeeklySMS(r *weeklyRecipient) string {
	parts := make([]string, 0, len(r.items))
	for _, it := range r.items {
		d := it.date
		if t, err := schedule.ParseDate(it.date); err == nil {
			d = t.Format("02/01")
		}
		parts = append(parts, fmt.Sprintf("%s %s-%s %s", d, it.start, it.end, it.counterpart))
	}
	return delivery.FitSMS("CareLink week: " + strings.Join(parts, "; "))
}
