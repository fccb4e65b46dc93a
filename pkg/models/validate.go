package models

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so messages match the wire contract
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("asset_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidationError describes client-fixable problems with a request body
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Validate normalizes and checks a create request
func (r *CreateAssetRequest) Validate() error {
	r.Normalize()
	return validationError(validate.Struct(r))
}

// Validate normalizes and checks an update request
func (r *UpdateAssetRequest) Validate() error {
	r.Normalize()
	return validationError(validate.Struct(r))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			out.Fields[fe.Field()] = fe.Field() + " is required"
		case "min":
			out.Fields[fe.Field()] = fe.Field() + " cannot be empty"
		case "asset_status":
			out.Fields[fe.Field()] = fmt.Sprintf("status must be one of %s", statusList())
		default:
			out.Fields[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return out
}

func statusList() string {
	names := make([]string, 0, len(Statuses()))
	for _, s := range Statuses() {
		names = append(names, fmt.Sprintf("%q", string(s)))
	}
	return strings.Join(names, ", ")
}
