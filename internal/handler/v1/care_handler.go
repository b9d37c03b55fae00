package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

// ── Patients ─────────────────────────────────────────────────────────────────

type createPatientRequest struct {
	UserID       uuid.UUID         `json:"user_id" binding:"required"`
	Gender       patient.Gender    `json:"gender"`
	BloodType    patient.BloodType `json:"blood_type"`
	KatzScore    *int              `json:"katz_score"`
	ITScore      *int              `json:"it_score"`
	Illness      string            `json:"illness"`
	Medication   string            `json:"medication"`
	CriticalInfo string            `json:"critical_info"`
	SocialPrice  bool              `json:"social_price"`
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.patients.CreatePatient(c.Request.Context(), actor(c), &service.CreatePatientCommand{
		UserID:       req.UserID,
		Gender:       req.Gender,
		BloodType:    req.BloodType,
		KatzScore:    req.KatzScore,
		ITScore:      req.ITScore,
		Illness:      req.Illness,
		Medication:   req.Medication,
		CriticalInfo: req.CriticalInfo,
		SocialPrice:  req.SocialPrice,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.patients.GetPatient(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

type linkFamilyRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	Relationship string    `json:"relationship"`
}

func (h *Handler) LinkFamily(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req linkFamilyRequest
	if !bindJSON(c, &req) {
		return
	}
	link, err := h.patients.LinkFamily(c.Request.Context(), actor(c), &service.LinkFamilyCommand{
		UserID:       req.UserID,
		PatientID:    id,
		Relationship: req.Relationship,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, link)
}

// ── Services and pricing ─────────────────────────────────────────────────────

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.pricing.ListServices(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if services == nil {
		services = []*catalog.Service{}
	}
	respondOK(c, services)
}

type createServiceRequest struct {
	Name         string          `json:"name" binding:"required"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description"`
	IsFamilyHelp bool            `json:"is_family_help"`
}

func (h *Handler) CreateService(c *gin.Context) {
	var req createServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.pricing.CreateService(c.Request.Context(), actor(c), service.CreateServiceCommand{
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		IsFamilyHelp: req.IsFamilyHelp,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, svc)
}

type createOverrideRequest struct {
	ServiceID   uuid.UUID         `json:"service_id" binding:"required"`
	CustomPrice decimal.Decimal   `json:"custom_price"`
	PriceType   catalog.PriceType `json:"price_type"`
	Notes       string            `json:"notes"`
}

func (h *Handler) CreatePriceOverride(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req createOverrideRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.pricing.CreateOverride(c.Request.Context(), actor(c), service.CreateOverrideCommand{
		PatientID:   patientID,
		ServiceID:   req.ServiceID,
		CustomPrice: req.CustomPrice,
		PriceType:   req.PriceType,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, o)
}

func (h *Handler) ListPriceOverrides(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	overrides, err := h.pricing.ListOverrides(c.Request.Context(), actor(c), patientID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if overrides == nil {
		overrides = []*catalog.PatientServicePrice{}
	}
	respondOK(c, overrides)
}

func (h *Handler) DeletePriceOverride(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.pricing.DeleteOverride(c.Request.Context(), actor(c), id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Prescriptions ────────────────────────────────────────────────────────────

func (h *Handler) ListPrescriptions(c *gin.Context) {
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	items, err := h.prescriptions.ListByPatient(c.Request.Context(), actor(c), patientID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if items == nil {
		items = []*prescription.Prescription{}
	}
	respondOK(c, items)
}

func (h *Handler) GetPrescription(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.prescriptions.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

type prescriptionStatusRequest struct {
	Status prescription.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdatePrescriptionStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req prescriptionStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.prescriptions.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}
