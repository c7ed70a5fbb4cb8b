package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "userdirectory/internal/errors"
)

var (
	// RE2 \s is ASCII only; \v, \p{Z} and U+FEFF cover the rest of the
	// whitespace a mail address must not contain.
	emailPattern    = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9._-]+$`)
)

type fieldRule struct {
	kind    string
	message string
}

// rules is keyed by "<json field>.<validator tag>".
var rules = map[string]fieldRule{
	"firstName.required":     {apperrors.RuleRequired, "First name is required"},
	"firstName.min":          {apperrors.RuleLength, "First name must be between 1 and 50 characters"},
	"firstName.max":          {apperrors.RuleLength, "First name must be between 1 and 50 characters"},
	"lastName.required":      {apperrors.RuleRequired, "Last name is required"},
	"lastName.min":           {apperrors.RuleLength, "Last name must be between 1 and 50 characters"},
	"lastName.max":           {apperrors.RuleLength, "Last name must be between 1 and 50 characters"},
	"email.required":         {apperrors.RuleRequired, "Email is required"},
	"email.useremail":        {apperrors.RulePattern, "Please provide a valid email"},
	"username.required":      {apperrors.RuleRequired, "Username is required"},
	"username.min":           {apperrors.RuleLength, "Username must be at least 3 characters"},
	"username.max":           {apperrors.RuleLength, "Username must be at most 30 characters"},
	"username.usernamechars": {apperrors.RulePattern, "Username may contain letters, numbers, dot, underscore, and hyphen only"},
	"password.required":      {apperrors.RuleRequired, "Password is required"},
	"password.min":           {apperrors.RuleLength, "Password must be at least 6 characters"},
}

// NewValidator builds a validator carrying the user field rules.
// Field errors are reported under their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.ToLower(fld.Name[:1]) + fld.Name[1:]
		}
		return name
	})
	mustRegister(v, "useremail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "usernamechars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateUser normalizes u in place and checks every field constraint.
// It returns a *errors.ValidationError listing the first violated rule of
// each invalid field.
func ValidateUser(v *validator.Validate, u *User) error {
	u.Normalize()

	err := v.Struct(u)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate user: %w", err)
	}

	out := &apperrors.ValidationError{Errors: make([]apperrors.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		rule, ok := rules[fe.Field()+"."+fe.Tag()]
		if !ok {
			rule = fieldRule{kind: apperrors.RulePattern, message: fmt.Sprintf("%s is invalid", fe.Field())}
		}
		out.Errors = append(out.Errors, apperrors.FieldError{
			Field:   fe.Field(),
			Rule:    rule.kind,
			Message: rule.message,
		})
	}
	return out
}
