// Package validation checks decoded request bodies with go-playground
// validator and turns failures into user-facing messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// bcrypt rejects longer inputs; counted in bytes, not runes.
	_ = validate.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= common.MaxPasswordBytes
	})
}

// messages maps "<json field>.<tag>" to the text shown to clients.
var messages = map[string]string{
	"email.required":         "Email is not valid",
	"email.email":            "Email is not valid",
	"password.required":      "Password is required",
	"password.min":           "Password must be at least 6 characters",
	"password.pwbytes":       "Password must be at most 72 characters",
	"fullname.required":      "Fullname is required",
	"oldPassword.required":   "Old password incorrect",
	"oldPassword.min":        "Old password incorrect",
	"newPassword.required":   "New password must be at least 6 characters",
	"newPassword.min":        "New password must be at least 6 characters",
	"newPassword.pwbytes":    "New password must be at most 72 characters",
	"otp.required":           "OTP is required",
	"otp.numeric":            "OTP must contain only digits",
	"refresh_token.required": "Refresh token is required",
}

// Error lists every failed field in declaration order. It matches
// common.ErrorValidation.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *Error) Unwrap() error { return common.ErrorValidation }

// Message is the first failure.
func (e *Error) Message() string {
	if len(e.Messages) == 0 {
		return common.ErrorValidation.Error()
	}
	return e.Messages[0]
}

// Struct validates s by its validate tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}

	out := &Error{Messages: make([]string, 0, len(ve))}
	for _, fe := range ve {
		out.Messages = append(out.Messages, message(fe.Field(), fe.Tag(), fe.Param()))
	}
	return out
}

func message(field, tag, param string) string {
	if m, ok := messages[field+"."+tag]; ok {
		return m
	}
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be no longer than %s characters", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// notBlank checks an optional field that, when present, must hold a value.
func notBlank(v *string, rule, emptyMsg string, errs *[]string) {
	if v == nil {
		return
	}
	if strings.TrimSpace(*v) == "" {
		*errs = append(*errs, emptyMsg)
		return
	}
	if rule == "" {
		return
	}
	if err := validate.Var(*v, rule); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			*errs = append(*errs, messages["email."+ve[0].Tag()])
			return
		}
		*errs = append(*errs, err.Error())
	}
}
