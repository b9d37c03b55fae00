package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("a patient profile already exists for this user")
	ErrFamilyLinkExists     = errors.New("family member is already linked to this patient")
)
