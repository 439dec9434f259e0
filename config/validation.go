package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate carries the package-wide validator. Struct tags cover range and
// enum rules; cross-field rules live in the hand checks below.
var validate = validator.New()

// Validate checks a loaded configuration. Tag violations are reported with
// the offending field's namespace, then cross-field rules are checked.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			return errors.New(formatFieldErrors(fieldErrors))
		}
		return err
	}

	if err := validateRetry(&cfg.Client.Retry); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}

	if err := validateRateLimit(&cfg.Client.RateLimit); err != nil {
		return fmt.Errorf("rate limit config: %w", err)
	}

	return nil
}

func validateRetry(cfg *Retry) error {
	if cfg.BaseDelay > 0 && cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.BaseDelay {
		return fmt.Errorf("maxdelay %s is below basedelay %s", cfg.MaxDelay, cfg.BaseDelay)
	}
	return nil
}

func validateRateLimit(cfg *RateLimit) error {
	if cfg.Enabled && cfg.RPS <= 0 {
		return errors.New("rps must be positive when rate limiting is enabled")
	}
	return nil
}

func formatFieldErrors(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, fieldErrorMessage(err))
	}
	return strings.Join(messages, "; ")
}

// fieldErrorMessage converts a validator error into a readable message
// keyed by the field's full namespace, e.g. Config.Client.Retry.Count.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Namespace(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation", fe.Namespace())
	}
}
