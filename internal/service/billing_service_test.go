package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

type billingFixture struct {
	h       *harness
	patient domain.Actor
	pid     uuid.UUID
	prov    uuid.UUID
	nursing uuid.UUID
}

// newBillingFixture books two completed February slots worth 20.00 and 25.00.
func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	h := newHarness(t)
	h.setNow(time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	nursing := h.addService(t, "Nursing", "20.00", false)
	cleaning := h.addService(t, "Cleaning", "25.00", false)
	prov, _ := h.addProvider(t, "Paul", nil)
	pat, actor := h.addPatient(t, "Alice")

	h.book(t, prov.ID, &pat.ID, "2025-02-10", clock(9, 0), clock(10, 0), schedule.StatusCompleted, &nursing.ID)
	h.book(t, prov.ID, &pat.ID, "2025-02-12", clock(14, 0), clock(15, 0), schedule.StatusConfirmed, &cleaning.ID)
	// Neither of these is billable.
	h.book(t, prov.ID, &pat.ID, "2025-02-13", clock(9, 0), clock(10, 0), schedule.StatusCancelled, &nursing.ID)
	h.book(t, prov.ID, &pat.ID, "2025-02-14", clock(9, 0), clock(10, 0), schedule.StatusCompleted, nil)

	return &billingFixture{h: h, patient: actor, pid: pat.ID, prov: prov.ID, nursing: nursing.ID}
}

func (f *billingFixture) generate(t *testing.T) *billing.Invoice {
	t.Helper()
	inv, err := f.h.billingSvc.Generate(t.Context(), f.h.coordinator, f.pid, date(t, "2025-02-01"), date(t, "2025-02-28"))
	require.NoError(t, err)
	return inv
}

func TestGenerate_PricesBillableSlots(t *testing.T) {
	f := newBillingFixture(t)
	inv := f.generate(t)

	assert.Equal(t, billing.InvoiceInProgress, inv.Status)
	assert.Equal(t, "45.00", inv.Amount.StringFixed(2))
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "Nursing", inv.Lines[0].ServiceName)
	assert.Equal(t, billing.SourceServiceDefault, inv.Lines[0].PriceSource)
	assert.Equal(t, "2025-02-12", inv.Lines[1].Date.Format(schedule.DateFormat))

	notes := f.h.notifications.Notifications(f.patient.UserID)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeInvoiceGenerated, notes[0].Type)
}

func TestGenerate_UsesPrescriptionService(t *testing.T) {
	f := newBillingFixture(t)
	rx := &prescription.Prescription{PatientID: &f.pid, ServiceID: &f.nursing, Status: prescription.StatusAccepted, StartDate: date(t, "2025-02-01")}
	require.NoError(t, f.h.prescriptions.Create(t.Context(), rx))
	_, slot := f.h.book(t, f.prov, &f.pid, "2025-02-20", clock(9, 0), clock(10, 0), schedule.StatusCompleted, nil)
	slot.PrescriptionID = &rx.ID
	require.NoError(t, f.h.schedules.UpdateTimeslot(t.Context(), slot))

	inv := f.generate(t)
	assert.Len(t, inv.Lines, 3)
	assert.Equal(t, "65.00", inv.Amount.StringFixed(2))
}

func TestGenerate_Validation(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()

	_, err := f.h.billingSvc.Generate(ctx, f.h.coordinator, f.pid, date(t, "2025-03-01"), date(t, "2025-02-01"))
	assert.ErrorIs(t, err, billing.ErrInvalidPeriod)

	_, err = f.h.billingSvc.Generate(ctx, f.patient, f.pid, date(t, "2025-02-01"), date(t, "2025-02-28"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegenerate_IsStable(t *testing.T) {
	f := newBillingFixture(t)
	inv := f.generate(t)

	first, err := f.h.billingSvc.Regenerate(t.Context(), f.h.admin, inv.ID)
	require.NoError(t, err)
	second, err := f.h.billingSvc.Regenerate(t.Context(), f.h.admin, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, inv.ID, second.ID)
	assert.True(t, first.Amount.Equal(second.Amount))
	require.Len(t, second.Lines, len(first.Lines))
	for i := range first.Lines {
		assert.Equal(t, first.Lines[i].Key(), second.Lines[i].Key())
	}
	assert.Equal(t, 1, f.h.billing.InvoiceCount())
}

func TestContest_AcceptAndSuccessor(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()
	inv := f.generate(t)

	contest, err := f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "duplicate charges"})
	require.NoError(t, err)
	assert.Equal(t, billing.ContestInProgress, contest.Status)
	require.NotNil(t, contest.TicketID)

	tickets := f.h.tickets.All()
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.RoleAdministrator, tickets[0].Team)
	assert.Equal(t, ticket.PriorityHigh, tickets[0].Priority)
	assert.Equal(t, inv.ID, *tickets[0].InvoiceID)
	assert.Contains(t, string(tickets[0].Metadata), `"total":"45.00"`)

	adminNotes := f.h.notifications.Notifications(f.h.admin.UserID)
	require.Len(t, adminNotes, 1)
	assert.Equal(t, notification.TypeInvoiceContested, adminNotes[0].Type)

	contested, err := f.h.billing.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceContested, contested.Status)

	_, err = f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "again"})
	assert.ErrorIs(t, err, billing.ErrActiveContestExists)

	resolved, err := f.h.billingSvc.ResolveContest(ctx, f.h.admin, contest.ID, billing.DecisionAccepted)
	require.NoError(t, err)
	assert.Equal(t, billing.ContestAccepted, resolved.Status)
	cancelled, err := f.h.billing.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceCancelled, cancelled.Status)

	// A slot added after the contest shows up on the successor.
	f.h.book(t, f.prov, &f.pid, "2025-02-25", clock(9, 0), clock(10, 0), schedule.StatusCompleted, &f.nursing)

	successor, err := f.h.billingSvc.CreateSuccessor(ctx, f.h.admin, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, successor.PredecessorID)
	assert.Equal(t, inv.ID, *successor.PredecessorID)
	assert.Equal(t, inv.PeriodStart, successor.PeriodStart)
	assert.Equal(t, inv.PeriodEnd, successor.PeriodEnd)
	assert.Equal(t, "65.00", successor.Amount.StringFixed(2))

	original, err := f.h.billing.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, original.NewInvoiceCreatedAfterContest)

	_, err = f.h.billingSvc.CreateSuccessor(ctx, f.h.admin, inv.ID)
	assert.ErrorIs(t, err, billing.ErrSuccessorExists)
	assert.Equal(t, 2, f.h.billing.InvoiceCount())
}

func TestContest_Rejected(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()
	inv := f.generate(t)

	contest, err := f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "wrong date", LineIDs: []uuid.UUID{inv.Lines[0].ID}})
	require.NoError(t, err)

	_, err = f.h.billingSvc.ResolveContest(ctx, f.patient, contest.ID, billing.DecisionRejected)
	assert.ErrorIs(t, err, ErrForbidden)

	resolved, err := f.h.billingSvc.ResolveContest(ctx, f.h.admin, contest.ID, billing.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, billing.ContestCancelled, resolved.Status)

	back, err := f.h.billing.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceInProgress, back.Status)

	_, err = f.h.billingSvc.ResolveContest(ctx, f.h.admin, contest.ID, billing.DecisionAccepted)
	assert.ErrorIs(t, err, billing.ErrContestNotPending)

	_, err = f.h.billingSvc.CreateSuccessor(ctx, f.h.admin, inv.ID)
	assert.ErrorIs(t, err, billing.ErrInvoiceNotCancelled)

	// The rejected contest no longer blocks a new one.
	_, err = f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "still wrong"})
	assert.NoError(t, err)
}

func TestContest_Validation(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()
	inv := f.generate(t)
	_, stranger := f.h.addPatient(t, "Sam")

	_, err := f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "   "})
	assert.ErrorIs(t, err, billing.ErrContestReasonRequired)

	_, err = f.h.billingSvc.Contest(ctx, f.patient, inv.ID, ContestCommand{Reason: "x", LineIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, billing.ErrUnknownLine)

	_, err = f.h.billingSvc.Contest(ctx, stranger, inv.ID, ContestCommand{Reason: "not mine"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.h.billingSvc.ResolveContest(ctx, f.h.admin, uuid.New(), "maybe")
	assert.ErrorIs(t, err, billing.ErrInvalidDecision)
}

func TestGenerateMonthly_SkipsExisting(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()

	res, err := f.h.billingSvc.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", res.PeriodStart)
	assert.Equal(t, "2025-02-28", res.PeriodEnd)
	assert.Len(t, res.Generated, 1)

	res, err = f.h.billingSvc.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Generated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, f.h.billing.InvoiceCount())
}

func TestListInvoices_Scoping(t *testing.T) {
	f := newBillingFixture(t)
	ctx := t.Context()
	f.generate(t)
	other, otherActor := f.h.addPatient(t, "Sam")
	_, err := f.h.billingSvc.Generate(ctx, f.h.coordinator, other.ID, date(t, "2025-02-01"), date(t, "2025-02-28"))
	require.NoError(t, err)

	all, total, err := f.h.billingSvc.ListInvoices(ctx, f.h.admin, billing.ListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	own, _, err := f.h.billingSvc.ListInvoices(ctx, otherActor, billing.ListQuery{PatientID: &f.pid})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, other.ID, own[0].PatientID)

	family := f.h.addUser(domain.RoleFamilyPatient, "Fred")
	famActor := domain.Actor{UserID: family.ID, Role: family.Role}
	_, _, err = f.h.billingSvc.ListInvoices(ctx, famActor, billing.ListQuery{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	_, _, err = f.h.billingSvc.ListInvoices(ctx, famActor, billing.ListQuery{PatientID: &f.pid})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExport_RendersWorkbook(t *testing.T) {
	f := newBillingFixture(t)
	inv := f.generate(t)

	raw, err := f.h.billingSvc.Export(t.Context(), f.patient, inv.ID)
	require.NoError(t, err)
	// XLSX files are zip archives.
	require.Greater(t, len(raw), 4)
	assert.Equal(t, []byte("PK"), raw[:2])
}
