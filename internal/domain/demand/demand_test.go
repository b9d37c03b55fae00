package demand

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		reason  string
		wantErr error
	}{
		{"review", StatusPending, StatusUnderReview, "", nil},
		{"approve", StatusUnderReview, StatusApproved, "", nil},
		{"start", StatusApproved, StatusInProgress, "", nil},
		{"complete", StatusInProgress, StatusCompleted, "", nil},
		{"cancel pending", StatusPending, StatusCancelled, "", nil},
		{"reject with reason", StatusUnderReview, StatusRejected, "duplicate", nil},
		{"reject without reason", StatusPending, StatusRejected, "", ErrRejectionReasonRequired},
		{"approve unreviewed", StatusPending, StatusApproved, "", ErrInvalidStatusTransition},
		{"reject approved", StatusApproved, StatusRejected, "late", ErrInvalidStatusTransition},
		{"reopen completed", StatusCompleted, StatusPending, "", ErrInvalidStatusTransition},
		{"unknown", StatusPending, "Paused", "", ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &ServiceDemand{Status: tt.from}
			err := d.Apply(tt.to, tt.reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, d.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, d.Status)
			assert.Equal(t, tt.reason, d.RejectionReason)
		})
	}
}

func TestAddNote(t *testing.T) {
	d := &ServiceDemand{}
	author := uuid.New()
	at := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	d.AddNote(author, "called the family", at)
	d.AddNote(author, "visit planned", at.Add(time.Hour))

	require.Len(t, d.CoordinatorNotes, 2)
	assert.Equal(t, "visit planned", d.CoordinatorNotes[1].Note)
	assert.Equal(t, author, d.CoordinatorNotes[0].AuthorID)
}

func TestPriority(t *testing.T) {
	assert.True(t, PriorityNormal.IsValid())
	assert.False(t, Priority("Medium").IsValid())
}
