package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type PatientRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]patient.Patient
	links    []patient.FamilyLink
}

func NewPatientRepo() *PatientRepo {
	return &PatientRepo{patients: make(map[uuid.UUID]patient.Patient)}
}

func (r *PatientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.patients {
		if existing.UserID == p.UserID {
			return patient.ErrPatientAlreadyExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.patients[p.ID] = *p
	return nil
}

func (r *PatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok || p.DeletedAt != nil {
		return nil, patient.ErrPatientNotFound
	}
	return &p, nil
}

func (r *PatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.UserID == userID && p.DeletedAt == nil {
			return &p, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r *PatientRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*patient.Patient
	for _, id := range ids {
		if p, ok := r.patients[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *PatientRepo) CreateFamilyLink(_ context.Context, link *patient.FamilyLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.UserID == link.UserID && l.PatientID == link.PatientID {
			return patient.ErrFamilyLinkExists
		}
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	r.links = append(r.links, *link)
	return nil
}

func (r *PatientRepo) ListFamilyUserIDs(_ context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for _, l := range r.links {
		if l.PatientID == patientID {
			out = append(out, l.UserID)
		}
	}
	return out, nil
}

func (r *PatientRepo) IsFamilyMember(_ context.Context, userID, patientID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.UserID == userID && l.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

type ProviderRepo struct {
	mu        sync.Mutex
	providers map[uuid.UUID]provider.Provider
	absences  []provider.Absence
	short     []provider.ShortAbsence
}

func NewProviderRepo() *ProviderRepo {
	return &ProviderRepo{providers: make(map[uuid.UUID]provider.Provider)}
}

func (r *ProviderRepo) Create(_ context.Context, p *provider.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.providers[p.ID] = *p
	return nil
}

func (r *ProviderRepo) GetByID(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok || p.DeletedAt != nil {
		return nil, provider.ErrProviderNotFound
	}
	return &p, nil
}

func (r *ProviderRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.UserID == userID && p.DeletedAt == nil {
			return &p, nil
		}
	}
	return nil, provider.ErrProviderNotFound
}

func (r *ProviderRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*provider.Provider
	for _, id := range ids {
		if p, ok := r.providers[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *ProviderRepo) AddAbsence(a provider.Absence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.absences = append(r.absences, a)
}

func (r *ProviderRepo) AddShortAbsence(a provider.ShortAbsence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.short = append(r.short, a)
}

func (r *ProviderRepo) ListAbsencesOn(_ context.Context, providerID uuid.UUID, date time.Time) ([]*provider.Absence, []*provider.ShortAbsence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := schedule.DateOnly(date)
	var full []*provider.Absence
	for _, a := range r.absences {
		if a.ProviderID == providerID && a.Covers(d) {
			full = append(full, &a)
		}
	}
	var short []*provider.ShortAbsence
	for _, a := range r.short {
		if a.ProviderID == providerID && schedule.DateOnly(a.Date).Equal(d) {
			short = append(short, &a)
		}
	}
	return full, short, nil
}
