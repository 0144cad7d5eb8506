package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a fully-defaulted GatewayConfig against its struct
// tags and returns a *ValidationError describing the first failure.
// The wrapped error is ErrMissingRequiredField for a "required" tag
// and ErrInvalidValue for anything else, so callers can distinguish
// the two with errors.Is without parsing the message.
func Validate(cfg *GatewayConfig) error {
	if err := validate.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return NewValidationError("config", "gateway", "", err)
		}
		first := verrs[0]
		sentinel := ErrInvalidValue
		if first.Tag() == "required" {
			sentinel = ErrMissingRequiredField
		}
		return NewValidationError("config", "gateway", first.Namespace(),
			fmt.Errorf("%w: failed '%s' validation", sentinel, first.Tag()))
	}
	return nil
}
