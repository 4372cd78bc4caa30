package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the required fields of an imported record.
func (r ImportRecord) Validate() error {
	return validate.Struct(r)
}

func (r ExternalCandidate) Validate() error {
	return validate.Struct(r)
}

// NormalizeEmail is the key used to deduplicate candidates on import.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateStruct runs the shared validator over any tagged request value.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
