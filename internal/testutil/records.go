package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

type PrescriptionRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]prescription.Prescription
}

func NewPrescriptionRepo() *PrescriptionRepo {
	return &PrescriptionRepo{items: make(map[uuid.UUID]prescription.Prescription)}
}

func (r *PrescriptionRepo) Create(_ context.Context, p *prescription.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.items[p.ID] = *p
	return nil
}

func (r *PrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, prescription.ErrPrescriptionNotFound
	}
	return &p, nil
}

func (r *PrescriptionRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*prescription.Prescription
	for _, id := range ids {
		if p, ok := r.items[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *PrescriptionRepo) FindByNote(_ context.Context, note string) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.Note == note {
			return &p, nil
		}
	}
	return nil, prescription.ErrPrescriptionNotFound
}

func (r *PrescriptionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status prescription.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return prescription.ErrPrescriptionNotFound
	}
	p.Status = status
	r.items[id] = p
	return nil
}

func (r *PrescriptionRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*prescription.Prescription
	for _, p := range r.items {
		if p.PatientID != nil && *p.PatientID == patientID {
			out = append(out, &p)
		}
	}
	return out, nil
}

// Count returns the number of stored prescriptions.
func (r *PrescriptionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type DemandRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]demand.ServiceDemand
	seq   int64
}

func NewDemandRepo() *DemandRepo {
	return &DemandRepo{items: make(map[uuid.UUID]demand.ServiceDemand)}
}

func (r *DemandRepo) Create(_ context.Context, d *demand.ServiceDemand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Number == 0 {
		r.seq++
		d.Number = r.seq
	}
	d.CreatedAt = time.Now()
	stored := *d
	stored.CoordinatorNotes = slices.Clone(d.CoordinatorNotes)
	r.items[d.ID] = stored
	return nil
}

func (r *DemandRepo) GetByID(_ context.Context, id uuid.UUID) (*demand.ServiceDemand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, demand.ErrDemandNotFound
	}
	d.CoordinatorNotes = slices.Clone(d.CoordinatorNotes)
	return &d, nil
}

func (r *DemandRepo) GetByNumber(_ context.Context, number int64) (*demand.ServiceDemand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.Number == number {
			d.CoordinatorNotes = slices.Clone(d.CoordinatorNotes)
			return &d, nil
		}
	}
	return nil, demand.ErrDemandNotFound
}

func (r *DemandRepo) Update(_ context.Context, d *demand.ServiceDemand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[d.ID]; !ok {
		return demand.ErrDemandNotFound
	}
	stored := *d
	stored.CoordinatorNotes = slices.Clone(d.CoordinatorNotes)
	r.items[d.ID] = stored
	return nil
}

func (r *DemandRepo) List(_ context.Context, q *demand.ListQuery) ([]*demand.ServiceDemand, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*demand.ServiceDemand
	for _, d := range r.items {
		if q.PatientID != nil && d.PatientID != *q.PatientID {
			continue
		}
		if q.ManagedBy != nil && (d.ManagedBy == nil || *d.ManagedBy != *q.ManagedBy) {
			continue
		}
		if q.Status != nil && d.Status != *q.Status {
			continue
		}
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, int64(len(out)), nil
}

type TicketRepo struct {
	mu       sync.Mutex
	tickets  map[uuid.UUID]ticket.Ticket
	comments []ticket.Comment
}

func NewTicketRepo() *TicketRepo {
	return &TicketRepo{tickets: make(map[uuid.UUID]ticket.Ticket)}
}

func (r *TicketRepo) Create(_ context.Context, t *ticket.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	r.tickets[t.ID] = *t
	return nil
}

func (r *TicketRepo) GetByID(_ context.Context, id uuid.UUID) (*ticket.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	return &t, nil
}

func (r *TicketRepo) Update(_ context.Context, t *ticket.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; !ok {
		return ticket.ErrTicketNotFound
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r *TicketRepo) List(_ context.Context, q *ticket.ListQuery) ([]*ticket.Ticket, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ticket.Ticket
	for _, t := range r.tickets {
		if q.Team != nil && t.Team != *q.Team {
			continue
		}
		if q.Status != nil && t.Status != *q.Status {
			continue
		}
		if q.CreatedBy != nil && t.CreatedBy != *q.CreatedBy {
			continue
		}
		if q.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *q.AssignedTo) {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *TicketRepo) AddComment(_ context.Context, c *ticket.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.comments = append(r.comments, *c)
	return nil
}

func (r *TicketRepo) ListComments(_ context.Context, ticketID uuid.UUID) ([]*ticket.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ticket.Comment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, &c)
		}
	}
	return out, nil
}

// All returns every stored ticket.
func (r *TicketRepo) All() []ticket.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ticket.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, t)
	}
	return out
}

type NotificationRepo struct {
	mu            sync.Mutex
	notifications []notification.Notification
	prefs         map[uuid.UUID]notification.Preference
	prefErrs      map[uuid.UUID]error
	logs          []notification.Log
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{
		prefs:    make(map[uuid.UUID]notification.Preference),
		prefErrs: make(map[uuid.UUID]error),
	}
}

// FailPreference makes GetPreference return err for userID.
func (r *NotificationRepo) FailPreference(userID uuid.UUID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefErrs[userID] = err
}

func (r *NotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *NotificationRepo) ListForUser(_ context.Context, userID uuid.UUID, q *notification.ListQuery) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		n := r.notifications[i]
		if n.RecipientID != userID || (q.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, &n)
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *NotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.notifications {
		if item.RecipientID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		n := &r.notifications[i]
		if n.ID == id && n.RecipientID == userID {
			if !n.IsRead {
				n.IsRead, n.ReadAt = true, &at
			}
			return nil
		}
	}
	return notification.ErrNotificationNotFound
}

func (r *NotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for i := range r.notifications {
		n := &r.notifications[i]
		if n.RecipientID == userID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &at
			updated++
		}
	}
	return updated, nil
}

func (r *NotificationRepo) GetPreference(_ context.Context, userID uuid.UUID) (*notification.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.prefErrs[userID]; err != nil {
		return nil, err
	}
	p, ok := r.prefs[userID]
	if !ok {
		return nil, notification.ErrPreferenceNotFound
	}
	return &p, nil
}

func (r *NotificationRepo) SavePreference(_ context.Context, p *notification.Preference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.UserID] = *p
	return nil
}

func (r *NotificationRepo) CreateLog(_ context.Context, l *notification.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now()
	r.logs = append(r.logs, *l)
	return nil
}

// Notifications returns the in-app rows addressed to userID, oldest first.
func (r *NotificationRepo) Notifications(userID uuid.UUID) []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.notifications {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}

// AllNotifications returns every in-app row, oldest first.
func (r *NotificationRepo) AllNotifications() []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notifications)
}

func (r *NotificationRepo) Logs() []notification.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.logs)
}
