package patient

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderOther   Gender = "X"
	GenderUnknown Gender = ""
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

type BloodType string

const (
	BloodTypeAPos    BloodType = "A+"
	BloodTypeANeg    BloodType = "A-"
	BloodTypeBPos    BloodType = "B+"
	BloodTypeBNeg    BloodType = "B-"
	BloodTypeABPos   BloodType = "AB+"
	BloodTypeABNeg   BloodType = "AB-"
	BloodTypeOPos    BloodType = "O+"
	BloodTypeONeg    BloodType = "O-"
	BloodTypeUnknown BloodType = ""
)

func (b BloodType) IsValid() bool {
	switch b {
	case BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg, BloodTypeUnknown:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"` // Soft Delete

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`

	Gender       Gender    `gorm:"column:gender;type:varchar(2)" json:"gender"`
	BloodType    BloodType `gorm:"column:blood_type;type:varchar(5)" json:"blood_type"`
	KatzScore    *int      `gorm:"column:katz_score" json:"katz_score,omitempty"`
	ITScore      *int      `gorm:"column:it_score" json:"it_score,omitempty"`
	Illness      string    `gorm:"column:illness;type:text" json:"illness,omitempty"`
	Medication   string    `gorm:"column:medication;type:text" json:"medication,omitempty"`
	CriticalInfo string    `gorm:"column:critical_information;type:text" json:"critical_information,omitempty"`

	SocialPrice  bool `gorm:"column:social_price;default:false" json:"social_price"`
	IsAlive      bool `gorm:"column:is_alive;default:true" json:"is_alive"`
	IsAnonymized bool `gorm:"column:is_anonymized;default:false;index" json:"is_anonymized"`
}

func (Patient) TableName() string {
	return "patients"
}

// IsActive reports whether the patient can still receive care and notifications.
func (p *Patient) IsActive() bool {
	return p.IsAlive && !p.IsAnonymized && p.DeletedAt == nil
}

// FamilyLink ties a family user to a patient they care for.
type FamilyLink struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_family_user_patient" json:"user_id"`
	PatientID    uuid.UUID `gorm:"column:patient_id;type:uuid;not null;uniqueIndex:idx_family_user_patient;index" json:"patient_id"`
	Relationship string    `gorm:"column:relationship;type:varchar(50)" json:"relationship"`
}

func (FamilyLink) TableName() string {
	return "family_patients"
}
