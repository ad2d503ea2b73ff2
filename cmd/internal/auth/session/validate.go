package session

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Email    string `validate:"required,email,max=256"`
	Password string `validate:"required,max=4096"`
}

// validateCredentials reports the first failing field as a ValidationError.
// Password strength is the credential store's concern.
func validateCredentials(email, password string) error {
	err := validate.Struct(credentials{Email: email, Password: password})
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return ValidationError{Msg: "invalid input"}
	}
	fe := ves[0]
	msg := "is invalid"
	if fe.Tag() == "required" {
		msg = "is required"
	}
	return ValidationError{Field: lowerCamel(fe.Field()), Msg: msg}
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
