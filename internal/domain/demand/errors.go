package demand

import "errors"

var (
	ErrDemandNotFound          = errors.New("service demand not found")
	ErrInvalidStatus           = errors.New("invalid service demand status")
	ErrInvalidStatusTransition = errors.New("invalid service demand status transition")
	ErrRejectionReasonRequired = errors.New("a rejection reason is required")
	ErrNotApproved             = errors.New("only approved service demands can be accepted into a prescription")
)
