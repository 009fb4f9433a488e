package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// It registers the personname and zipcode rules and reports JSON field names.
func NewValidator() *echoValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return domain.IsValidNamePattern(fl.Field().String())
	})
	_ = v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return domain.IsValidZipCode(fl.Field().String())
	})

	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface. Every violated field is
// reported in struct order.
func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.Internal("validation could not run", err)
	}

	fields := make([]domain.FieldViolation, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, domain.FieldViolation{Field: fe.Field(), Message: fieldError(fe)})
	}
	return domain.Validation(fields)
}

var fieldLabels = map[string]string{
	"name":    "Name",
	"zipCode": "Zip code",
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d characters", label, domain.NameMinLength, domain.NameMaxLength)
	case "personname":
		return label + " can only contain letters, spaces, hyphens, and apostrophes"
	case "zipcode":
		return label + " must be exactly 5 digits"
	default:
		return label + " is invalid"
	}
}
