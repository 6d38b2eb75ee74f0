// Package utils provides request validation helpers shared by the
// application services and the HTTP layer.
package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

var defaultValidator *validator.Validate

var chainFormatPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func init() {
	defaultValidator = validator.New()
	defaultValidator.RegisterValidation("chain_format", validateChainFormat)
}

// ValidateStruct validates a struct against its validate tags and
// returns an invalid_request error listing every failed field.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return wgerrors.ErrInvalidRequest(err.Error())
	}

	wgErr := wgerrors.ErrInvalidRequest("request validation failed")
	for _, fe := range validationErrors {
		wgErr = wgErr.WithMetadata(toSnakeCase(fe.Field()), formatValidationError(fe))
	}
	return wgErr
}

// validateChainFormat accepts chain identifiers in any casing;
// resolution against the registry happens after binding.
func validateChainFormat(fl validator.FieldLevel) bool {
	return chainFormatPattern.MatchString(fl.Field().String())
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "chain_format":
		return "must be a chain identifier"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

// toSnakeCase converts CamelCase field names for error payloads.
func toSnakeCase(str string) string {
	var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
