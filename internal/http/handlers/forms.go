package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgFillAllFields      = "Please fill in all fields"
	msgInvalidEmail       = "Please enter a valid email address"
	msgPasswordTooShort   = "Password must be at least 6 characters"
	msgPasswordMismatch   = "Passwords do not match"
	msgInvalidCredentials = "Invalid email or password. Please try again."
	msgRegisterFailed     = "Registration failed. This email may already be registered."
)

type loginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Name            string `form:"name" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password"`
}

// NewValidator returns a validator that reports fields by their form names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handlers) validator() *validator.Validate {
	if h.Validate == nil {
		h.Validate = NewValidator()
	}
	return h.Validate
}

// formMessage validates form and returns the message for its first failing
// field, or an empty string when the form is valid.
func (h *Handlers) formMessage(form any) string {
	err := h.validator().Struct(form)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return msgFillAllFields
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "email":
		return msgInvalidEmail
	case "min":
		return msgPasswordTooShort
	case "eqfield":
		return msgPasswordMismatch
	default:
		return msgFillAllFields
	}
}
