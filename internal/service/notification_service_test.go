package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

func ptr[T any](v T) *T { return &v }

func TestWeekWindow(t *testing.T) {
	friday := time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC)

	start, end := WeekWindow(friday, 0)
	assert.Equal(t, "2025-03-02", start.Format(schedule.DateFormat))
	assert.Equal(t, "2025-03-08", end.Format(schedule.DateFormat))

	start, end = WeekWindow(friday, 1)
	assert.Equal(t, time.Sunday, start.Weekday())
	assert.Equal(t, "2025-03-09", start.Format(schedule.DateFormat))
	assert.Equal(t, "2025-03-15", end.Format(schedule.DateFormat))
}

func TestParseBatchChannels(t *testing.T) {
	chs, err := ParseBatchChannels("")
	require.NoError(t, err)
	assert.Len(t, chs, 2)

	chs, err = ParseBatchChannels(" SMS ")
	require.NoError(t, err)
	assert.Equal(t, []notification.Channel{notification.ChannelSMS}, chs)

	_, err = ParseBatchChannels("pigeon")
	assert.ErrorIs(t, err, notification.ErrInvalidChannel)
}

func TestWeeklyBatch_SMS(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	h.setNow(time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC))
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, _ := h.addPatient(t, "Alice")

	h.book(t, prov.ID, &pat.ID, "2025-03-10", clock(9, 0), clock(10, 0), schedule.StatusConfirmed, nil)
	h.book(t, prov.ID, &pat.ID, "2025-03-12", clock(14, 0), clock(15, 0), schedule.StatusCancelled, nil)
	// Outside the window.
	h.book(t, prov.ID, &pat.ID, "2025-03-17", clock(9, 0), clock(10, 0), schedule.StatusScheduled, nil)

	_, err := h.notify.UpdatePreference(ctx, pat.UserID, PreferenceUpdate{
		SMSNotifications:       ptr(true),
		PreferredContactMethod: ptr(notification.ContactSMS),
		PrimaryPhone:           ptr("0470 12 34 56"),
	})
	require.NoError(t, err)

	res, err := h.notify.WeeklyBatch(ctx, 1, []notification.Channel{notification.ChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", res.WeekStart)
	assert.Equal(t, "2025-03-15", res.WeekEnd)
	assert.Equal(t, 2, res.Recipients)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Skipped, 1, "the provider prefers email")

	sms := h.sms.Sent()
	require.Len(t, sms, 1)
	assert.Equal(t, "+32470123456", sms[0].To)
	assert.Contains(t, sms[0].Body, "10/03 09:00-10:00")
	assert.NotContains(t, sms[0].Body, "14:00")
	assert.Empty(t, h.email.Sent())

	logs := h.notifications.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, notification.LogSent, logs[0].Status)
	assert.True(t, strings.HasPrefix(logs[0].ExternalID, "SMS-WEEKLY-"), logs[0].ExternalID)
}

func TestWeeklyBatch_EmailAndFailures(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	h.setNow(time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC))
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, _ := h.addPatient(t, "Alice")
	h.book(t, prov.ID, &pat.ID, "2025-03-11", clock(9, 0), clock(10, 0), schedule.StatusScheduled, nil)

	h.sms.Fail = errors.New("vendor down")
	res, err := h.notify.WeeklyBatch(ctx, 0, []notification.Channel{notification.ChannelEmail, notification.ChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent, "both default to email")
	assert.Zero(t, res.Failed)
	assert.Len(t, res.Skipped, 2, "nobody prefers sms")

	emails := h.email.Sent()
	require.Len(t, emails, 2)
	assert.Contains(t, emails[0].Subject, "09/03/2025")
	for _, l := range h.notifications.Logs() {
		assert.True(t, strings.HasPrefix(l.ExternalID, "EMAIL-WEEKLY-"), l.ExternalID)
	}

	_, err = h.notify.UpdatePreference(ctx, pat.UserID, PreferenceUpdate{PreferredContactMethod: ptr(notification.ContactBoth)})
	require.NoError(t, err)
	res, err = h.notify.WeeklyBatch(ctx, 0, []notification.Channel{notification.ChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	logs := h.notifications.Logs()
	last := logs[len(logs)-1]
	assert.Equal(t, notification.LogFailed, last.Status)
	assert.True(t, strings.HasPrefix(last.ExternalID, "SMS-WEEKLY-FAILED-"), last.ExternalID)
	assert.Equal(t, "vendor down", last.ErrorMessage)
}

func TestWeeklyBatch_SkipsBrokenAndInactiveRecipients(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	h.setNow(time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC))
	prov, _ := h.addProvider(t, "Paul", nil)
	alice, _ := h.addPatient(t, "Alice")
	bob, _ := h.addPatient(t, "Bob")
	h.book(t, prov.ID, &alice.ID, "2025-03-11", clock(9, 0), clock(10, 0), schedule.StatusScheduled, nil)
	h.book(t, prov.ID, &bob.ID, "2025-03-12", clock(9, 0), clock(10, 0), schedule.StatusScheduled, nil)

	provUser, err := h.users.GetByID(ctx, prov.UserID)
	require.NoError(t, err)
	provUser.IsActive = false
	require.NoError(t, h.users.UpdateLoginState(ctx, provUser))
	h.notifications.FailPreference(alice.UserID, errors.New("db down"))

	res, err := h.notify.WeeklyBatch(ctx, 0, []notification.Channel{notification.ChannelEmail})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipients, "inactive provider is not a recipient")
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, alice.UserID, res.Skipped[0].UserID)
	assert.Equal(t, "preferences unavailable", res.Skipped[0].Reason)

	emails := h.email.Sent()
	require.Len(t, emails, 1)
}

func TestWeeklyBatch_NegativeOffset(t *testing.T) {
	h := newHarness(t)
	_, err := h.notify.WeeklyBatch(t.Context(), -1, nil)
	assert.ErrorIs(t, err, notification.ErrInvalidWeekOffset)
}

func TestUpdatePreference_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := h.addUser("Patient", "Alice")

	_, err := h.notify.UpdatePreference(ctx, u.ID, PreferenceUpdate{PrimaryPhone: ptr("call me maybe")})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.notify.UpdatePreference(ctx, u.ID, PreferenceUpdate{PreferredContactMethod: ptr(notification.ContactMethod("fax"))})
	assert.ErrorIs(t, err, notification.ErrInvalidContactMethod)

	pref, err := h.notify.UpdatePreference(ctx, u.ID, PreferenceUpdate{InAppNotifications: ptr(false)})
	require.NoError(t, err)
	assert.False(t, pref.InAppNotifications)
	assert.True(t, pref.EmailNotifications)
}

func TestInbox_PreferencesAndReadState(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, _ := h.addPatient(t, "Alice")

	_, err := h.notify.UpdatePreference(ctx, prov.UserID, PreferenceUpdate{ScheduleChanges: ptr(false)})
	require.NoError(t, err)

	_, err = h.scheduling.QuickSchedule(ctx, h.coordinator, schedule.CreateScheduleCommand{
		ProviderID: prov.ID,
		PatientID:  &pat.ID,
		Date:       date(t, "2025-03-10"),
		StartTime:  clock(9, 0),
		EndTime:    clock(10, 0),
	})
	require.NoError(t, err)

	assert.Empty(t, h.notifications.Notifications(prov.UserID), "schedule changes are muted")
	assert.Equal(t, 1, h.pusher.Count(pat.UserID))

	unread, err := h.notify.UnreadCount(ctx, pat.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	list, err := h.notify.List(ctx, pat.UserID, &notification.ListQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, h.notify.MarkRead(ctx, pat.UserID, list[0].ID))

	unread, err = h.notify.UnreadCount(ctx, pat.UserID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	n, err := h.notify.MarkAllRead(ctx, pat.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublish_QueuedDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, _ := h.addPatient(t, "Alice")

	h.notify.Start(2, 8)
	_, err := h.scheduling.QuickSchedule(ctx, h.coordinator, schedule.CreateScheduleCommand{
		ProviderID: prov.ID,
		PatientID:  &pat.ID,
		Date:       date(t, "2025-03-10"),
		StartTime:  clock(9, 0),
		EndTime:    clock(10, 0),
	})
	require.NoError(t, err)
	h.notify.Shutdown()

	assert.Len(t, h.notifications.Notifications(pat.UserID), 1)
	assert.Len(t, h.notifications.Notifications(prov.UserID), 1)
}

func TestDispatchSchedule_ActorSkippedOnlyOnCreate(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, _ := h.addPatient(t, "Alice")
	booked, _ := h.book(t, prov.ID, &pat.ID, "2025-03-10", clock(9, 0), clock(10, 0), schedule.StatusScheduled, nil)
	sc, err := h.schedules.GetByID(ctx, booked.ID)
	require.NoError(t, err)

	require.NoError(t, h.notify.Dispatch(ctx, notification.Event{
		Type:     notification.TypeScheduleCreated,
		ActorID:  &prov.UserID,
		Schedule: notification.SnapshotSchedule(sc),
	}))
	assert.Empty(t, h.notifications.Notifications(prov.UserID))
	assert.Len(t, h.notifications.Notifications(pat.UserID), 1)

	require.NoError(t, h.notify.Dispatch(ctx, notification.Event{
		Type:          notification.TypeScheduleUpdated,
		ActorID:       &prov.UserID,
		Schedule:      notification.SnapshotSchedule(sc),
		ChangedFields: []string{"start_time"},
	}))
	provNotes := h.notifications.Notifications(prov.UserID)
	require.Len(t, provNotes, 1)
	assert.Equal(t, notification.TypeScheduleUpdated, provNotes[0].Type)
	assert.Len(t, h.notifications.Notifications(pat.UserID), 2)
}
