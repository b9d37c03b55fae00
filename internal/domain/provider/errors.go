package provider

import "errors"

var ErrProviderNotFound = errors.New("provider not found")
