package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Regulated price band for family-help services.
var (
	FamilyHelpMinPrice = decimal.RequireFromString("0.94")
	FamilyHelpMaxPrice = decimal.RequireFromString("9.97")
)

type Service struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Name        string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null;default:0" json:"price"`
	Description string          `gorm:"column:description;type:text" json:"description,omitempty"`
	// IsFamilyHelp places the service under the regulated price band.
	IsFamilyHelp bool `gorm:"column:is_family_help;default:false" json:"is_family_help"`
}

func (Service) TableName() string {
	return "services"
}

type PriceType string

const (
	PriceHourly PriceType = "hourly"
	PriceFixed  PriceType = "fixed"
)

func (t PriceType) IsValid() bool {
	return t == PriceHourly || t == PriceFixed
}

// PatientServicePrice overrides a service's default price for one patient.
type PatientServicePrice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID   uuid.UUID       `gorm:"column:patient_id;type:uuid;not null;uniqueIndex:idx_patient_service_price" json:"patient_id"`
	ServiceID   uuid.UUID       `gorm:"column:service_id;type:uuid;not null;uniqueIndex:idx_patient_service_price" json:"service_id"`
	CustomPrice decimal.Decimal `gorm:"column:custom_price;type:numeric(10,2);not null" json:"custom_price"`
	PriceType   PriceType       `gorm:"column:price_type;type:varchar(10);not null;default:'hourly'" json:"price_type"`
	Notes       string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedBy   uuid.UUID       `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (PatientServicePrice) TableName() string {
	return "patient_service_prices"
}

// ValidatePrice applies the creation-time rules for a price on svc.
func ValidatePrice(svc *Service, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativePrice
	}
	if svc != nil && svc.IsFamilyHelp {
		if amount.LessThan(FamilyHelpMinPrice) || amount.GreaterThan(FamilyHelpMaxPrice) {
			return ErrFamilyHelpPriceRange
		}
	}
	return nil
}

// RoundMoney rounds to two fractional digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
