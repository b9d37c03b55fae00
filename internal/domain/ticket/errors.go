package ticket

import "errors"

var (
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrInvalidStatusTransition = errors.New("invalid ticket status transition")
	ErrInvalidTeam             = errors.New("assigned team must be Coordinator or Administrator")
	ErrInvalidPriority         = errors.New("invalid ticket priority")
	ErrEmptyComment            = errors.New("comment cannot be empty")
	ErrAssigneeNotInTeam       = errors.New("assignee is not a member of the ticket's team")
)
