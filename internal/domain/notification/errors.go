package notification

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPreferenceNotFound   = errors.New("notification preference not found")
	ErrInvalidContactMethod = errors.New("preferred_contact_method must be email, sms, both or none")
	ErrInvalidWeekOffset    = errors.New("week_offset must be 0 or greater")
	ErrInvalidChannel       = errors.New("channel must be email, sms or both")
)
