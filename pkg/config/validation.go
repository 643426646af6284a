package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Scheme registrations must be unique; duplicates would silently
	// shadow each other's options.
	seen := make(map[string]bool)
	for i, svc := range cfg.Services {
		if seen[svc.Scheme] {
			return fmt.Errorf("services[%d]: duplicate scheme %q", i, svc.Scheme)
		}
		seen[svc.Scheme] = true
	}
	return nil
}

// formatValidationError turns validator's error list into one readable
// message per failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", fe.Namespace())
		case "oneof":
			return fmt.Errorf("%s: %q is not one of [%s]", fe.Namespace(), fe.Value(), fe.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", fe.Namespace(), fe.Param())
		default:
			return fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag())
		}
	}
	return err
}
