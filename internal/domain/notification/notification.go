package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeScheduleCreated            Type = "schedule_created"
	TypeScheduleUpdated            Type = "schedule_updated"
	TypeScheduleCancelled          Type = "schedule_cancelled"
	TypeTicketNew                  Type = "ticket_new"
	TypeTicketUpdated              Type = "ticket_updated"
	TypeTicketAssigned             Type = "ticket_assigned"
	TypeTicketComment              Type = "ticket_comment"
	TypeServiceDemandCreated       Type = "service_demand_created"
	TypeServiceDemandUpdateComment Type = "service_demand_update_comment"
	TypeInvoiceContested           Type = "invoice_contested"
	TypeInvoiceGenerated           Type = "invoice_generated"
)

type Category string

const (
	CategoryAppointmentReminders Category = "appointment_reminders"
	CategoryBilling              Category = "billing"
	CategoryMedical              Category = "medical"
	CategoryMarketing            Category = "marketing"
	CategoryScheduleChanges      Category = "schedule_changes"
	CategoryNewTickets           Category = "new_tickets"
	CategoryComments             Category = "comments"
)

var categories = map[Type]Category{
	TypeScheduleCreated:            CategoryScheduleChanges,
	TypeScheduleUpdated:            CategoryScheduleChanges,
	TypeScheduleCancelled:          CategoryScheduleChanges,
	TypeTicketNew:                  CategoryNewTickets,
	TypeTicketUpdated:              CategoryNewTickets,
	TypeTicketAssigned:             CategoryNewTickets,
	TypeTicketComment:              CategoryComments,
	TypeServiceDemandCreated:       CategoryNewTickets,
	TypeServiceDemandUpdateComment: CategoryComments,
	TypeInvoiceContested:           CategoryBilling,
	TypeInvoiceGenerated:           CategoryBilling,
}

// Category returns the preference gate of t. Unknown types are ungated.
func (t Type) Category() (Category, bool) {
	c, ok := categories[t]
	return c, ok
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	RecipientID uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null;index:idx_notification_recipient_read" json:"recipient_id"`
	SenderID    *uuid.UUID `gorm:"column:sender_id;type:uuid" json:"sender_id,omitempty"`
	Type        Type       `gorm:"column:notification_type;type:varchar(40);not null;index" json:"notification_type"`
	Title       string     `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Message     string     `gorm:"column:message;type:text;not null" json:"message"`
	Priority    Priority   `gorm:"column:priority;type:varchar(10);not null;default:'normal'" json:"priority"`
	IsRead      bool       `gorm:"column:is_read;default:false;index:idx_notification_recipient_read" json:"is_read"`
	ReadAt      *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`

	ScheduleID      *uuid.UUID `gorm:"column:schedule_id;type:uuid" json:"schedule_id,omitempty"`
	TicketID        *uuid.UUID `gorm:"column:ticket_id;type:uuid" json:"ticket_id,omitempty"`
	ServiceDemandID *uuid.UUID `gorm:"column:service_demand_id;type:uuid" json:"service_demand_id,omitempty"`

	Extra datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}

type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactSMS   ContactMethod = "sms"
	ContactBoth  ContactMethod = "both"
	ContactNone  ContactMethod = "none"
)

func (m ContactMethod) IsValid() bool {
	switch m {
	case ContactEmail, ContactSMS, ContactBoth, ContactNone:
		return true
	}
	return false
}

// Includes reports whether the preferred method covers ch.
func (m ContactMethod) Includes(ch Channel) bool {
	switch m {
	case ContactBoth:
		return ch == ChannelEmail || ch == ChannelSMS
	case ContactEmail:
		return ch == ChannelEmail
	case ContactSMS:
		return ch == ChannelSMS
	}
	return false
}

type Preference struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	EmailNotifications bool `gorm:"column:email_notifications" json:"email_notifications"`
	SMSNotifications   bool `gorm:"column:sms_notifications" json:"sms_notifications"`
	InAppNotifications bool `gorm:"column:in_app_notifications" json:"in_app_notifications"`

	AppointmentReminders   bool `gorm:"column:appointment_reminders" json:"appointment_reminders"`
	BillingNotifications   bool `gorm:"column:billing_notifications" json:"billing_notifications"`
	MedicalNotifications   bool `gorm:"column:medical_notifications" json:"medical_notifications"`
	MarketingNotifications bool `gorm:"column:marketing_notifications" json:"marketing_notifications"`
	ScheduleChanges        bool `gorm:"column:schedule_changes" json:"schedule_changes"`
	NewTickets             bool `gorm:"column:new_tickets" json:"new_tickets"`
	Comments               bool `gorm:"column:comments" json:"comments"`

	PreferredContactMethod ContactMethod `gorm:"column:preferred_contact_method;type:varchar(10)" json:"preferred_contact_method"`
	PrimaryPhone           string        `gorm:"column:primary_phone;type:varchar(30)" json:"primary_phone,omitempty"`
}

func (Preference) TableName() string {
	return "notification_preferences"
}

// DefaultPreference is created on first lookup.
func DefaultPreference(userID uuid.UUID) *Preference {
	return &Preference{
		UserID:                 userID,
		EmailNotifications:     true,
		SMSNotifications:       false,
		InAppNotifications:     true,
		AppointmentReminders:   true,
		BillingNotifications:   true,
		MedicalNotifications:   true,
		MarketingNotifications: false,
		ScheduleChanges:        true,
		NewTickets:             true,
		Comments:               true,
		PreferredContactMethod: ContactEmail,
	}
}

func (p *Preference) Allows(c Category) bool {
	switch c {
	case CategoryAppointmentReminders:
		return p.AppointmentReminders
	case CategoryBilling:
		return p.BillingNotifications
	case CategoryMedical:
		return p.MedicalNotifications
	case CategoryMarketing:
		return p.MarketingNotifications
	case CategoryScheduleChanges:
		return p.ScheduleChanges
	case CategoryNewTickets:
		return p.NewTickets
	case CategoryComments:
		return p.Comments
	}
	return true
}

// AllowsInApp applies the global in-app switch and the category gate of t.
func (p *Preference) AllowsInApp(t Type) bool {
	if !p.InAppNotifications {
		return false
	}
	if c, ok := t.Category(); ok {
		return p.Allows(c)
	}
	return true
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type LogStatus string

const (
	LogPending LogStatus = "pending"
	LogSent    LogStatus = "sent"
	LogFailed  LogStatus = "failed"
)

// FailureCategory classifies why an outbound delivery failed.
type FailureCategory string

const (
	FailureReservedTestDomain FailureCategory = "reserved_test_domain"
	FailureAuth               FailureCategory = "auth"
	FailureInvalidAddress     FailureCategory = "invalid_address"
	FailureNetwork            FailureCategory = "network"
	FailureBlocked            FailureCategory = "blocked"
	FailureQuota              FailureCategory = "quota"
	FailureUnknown            FailureCategory = "unknown"
)

// Log is an append-only record of one outbound delivery attempt.
type Log struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	UserID          *uuid.UUID      `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	Channel         Channel         `gorm:"column:channel;type:varchar(10);not null;index" json:"channel"`
	Recipient       string          `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	Subject         string          `gorm:"column:subject;type:varchar(255)" json:"subject,omitempty"`
	Message         string          `gorm:"column:message;type:text" json:"message"`
	Status          LogStatus       `gorm:"column:status;type:varchar(10);not null;index" json:"status"`
	ExternalID      string          `gorm:"column:external_id;type:varchar(255);index" json:"external_id,omitempty"`
	ErrorMessage    string          `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	FailureCategory FailureCategory `gorm:"column:failure_category;type:varchar(30)" json:"failure_category,omitempty"`
	Metadata        datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (Log) TableName() string {
	return "notification_logs"
}

// Snippet keeps log rows bounded.
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type ListQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
