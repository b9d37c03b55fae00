package catalog

import "errors"

var (
	ErrServiceNotFound      = errors.New("service not found")
	ErrOverrideNotFound     = errors.New("price override not found")
	ErrOverrideExists       = errors.New("a price override already exists for this patient and service; update or delete it instead")
	ErrNegativePrice        = errors.New("price cannot be negative")
	ErrFamilyHelpPriceRange = errors.New("family help price must be between 0.94 and 9.97")
	ErrInvalidPriceType     = errors.New("price_type must be hourly or fixed")
)
