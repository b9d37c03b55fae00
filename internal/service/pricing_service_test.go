package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

func slotOf(start, end schedule.Clock) *schedule.TimeSlot {
	return &schedule.TimeSlot{StartTime: start, EndTime: end, Status: schedule.StatusCompleted}
}

func TestResolve_FamilyHelpOverride(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	svc := h.addService(t, "Family help", "5.00", true)
	pat, _ := h.addPatient(t, "Alice")

	o, err := h.pricing.CreateOverride(ctx, h.coordinator, CreateOverrideCommand{
		PatientID:   pat.ID,
		ServiceID:   svc.ID,
		CustomPrice: decimal.RequireFromString("3.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.PriceHourly, o.PriceType)

	tests := []struct {
		name string
		slot *schedule.TimeSlot
		want string
	}{
		{"one hour", slotOf(clock(9, 0), clock(10, 0)), "3.50"},
		{"half hour", slotOf(clock(9, 0), clock(9, 30)), "3.50"},
		{"two hours", slotOf(clock(9, 0), clock(11, 0)), "3.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := h.pricing.Resolve(ctx, pat.ID, svc, tt.slot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Amount.StringFixed(2))
			assert.Equal(t, billing.SourceOverride, p.Source)
			assert.True(t, p.Billable)
		})
	}

	// Another patient gets the service default, also unscaled.
	other, _ := h.addPatient(t, "Bob")
	for _, slot := range []*schedule.TimeSlot{slotOf(clock(9, 0), clock(9, 30)), slotOf(clock(9, 0), clock(11, 0))} {
		p, err := h.pricing.Resolve(ctx, other.ID, svc, slot)
		require.NoError(t, err)
		assert.Equal(t, "5.00", p.Amount.StringFixed(2))
		assert.Equal(t, billing.SourceServiceDefault, p.Source)
	}
}

func TestResolve_FixedOverride(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	svc := h.addService(t, "Nursing", "20.00", false)
	pat, _ := h.addPatient(t, "Alice")

	_, err := h.pricing.CreateOverride(ctx, h.admin, CreateOverrideCommand{
		PatientID:   pat.ID,
		ServiceID:   svc.ID,
		CustomPrice: decimal.RequireFromString("35"),
		PriceType:   catalog.PriceFixed,
	})
	require.NoError(t, err)

	p, err := h.pricing.Resolve(ctx, pat.ID, svc, slotOf(clock(9, 0), clock(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, "35.00", p.Amount.StringFixed(2))
}

func TestResolve_NoService(t *testing.T) {
	h := newHarness(t)
	p, err := h.pricing.Resolve(t.Context(), uuid.New(), nil, slotOf(clock(9, 0), clock(10, 0)))
	require.NoError(t, err)
	assert.True(t, p.Amount.IsZero())
	assert.Equal(t, billing.SourceZero, p.Source)
	assert.False(t, p.Billable)
}

func TestCreateOverride_FamilyHelpBand(t *testing.T) {
	h := newHarness(t)
	svc := h.addService(t, "Family help", "5.00", true)

	tests := []struct {
		price   string
		wantErr error
	}{
		{"0.94", nil},
		{"9.97", nil},
		{"0.93", catalog.ErrFamilyHelpPriceRange},
		{"9.98", catalog.ErrFamilyHelpPriceRange},
		{"10.00", catalog.ErrFamilyHelpPriceRange},
		{"-1", catalog.ErrNegativePrice},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			pat, _ := h.addPatient(t, "P"+tt.price)
			_, err := h.pricing.CreateOverride(t.Context(), h.coordinator, CreateOverrideCommand{
				PatientID:   pat.ID,
				ServiceID:   svc.ID,
				CustomPrice: decimal.RequireFromString(tt.price),
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateOverride_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	svc := h.addService(t, "Nursing", "20.00", false)
	pat, patActor := h.addPatient(t, "Alice")
	cmd := CreateOverrideCommand{PatientID: pat.ID, ServiceID: svc.ID, CustomPrice: decimal.RequireFromString("18")}

	_, err := h.pricing.CreateOverride(ctx, patActor, cmd)
	assert.ErrorIs(t, err, ErrForbidden)

	bad := cmd
	bad.PriceType = "weekly"
	_, err = h.pricing.CreateOverride(ctx, h.admin, bad)
	assert.ErrorIs(t, err, catalog.ErrInvalidPriceType)

	unknown := cmd
	unknown.ServiceID = uuid.New()
	_, err = h.pricing.CreateOverride(ctx, h.admin, unknown)
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)

	o, err := h.pricing.CreateOverride(ctx, h.admin, cmd)
	require.NoError(t, err)
	_, err = h.pricing.CreateOverride(ctx, h.admin, cmd)
	assert.ErrorIs(t, err, catalog.ErrOverrideExists)

	list, err := h.pricing.ListOverrides(ctx, h.coordinator, pat.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.pricing.DeleteOverride(ctx, h.admin, o.ID))
	p, err := h.pricing.Resolve(ctx, pat.ID, svc, slotOf(clock(9, 0), clock(10, 0)))
	require.NoError(t, err)
	assert.Equal(t, billing.SourceServiceDefault, p.Source)
}

func TestCreateService(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	_, err := h.pricing.CreateService(ctx, h.coordinator, CreateServiceCommand{Name: "Nursing", Price: decimal.NewFromInt(20)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.pricing.CreateService(ctx, h.admin, CreateServiceCommand{Name: "Help", Price: decimal.NewFromInt(12), IsFamilyHelp: true})
	assert.ErrorIs(t, err, catalog.ErrFamilyHelpPriceRange)

	svc, err := h.pricing.CreateService(ctx, h.admin, CreateServiceCommand{Name: " Nursing ", Price: decimal.RequireFromString("20.004")})
	require.NoError(t, err)
	assert.Equal(t, "Nursing", svc.Name)
	assert.Equal(t, "20.00", svc.Price.StringFixed(2))
}
