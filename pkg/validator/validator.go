package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/carelink-api/pkg/errors"
)

var indianPhone = regexp.MustCompile(`^[6-9]\d{9}$`)

var messages = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email",
	"min":       "%s is too short",
	"max":       "%s is too long",
	"oneof":     "%s is invalid",
	"uuid":      "%s must be a valid id",
	"yesno":     "%s must be 'yes' or 'no'",
	"inphone":   "%s must be a valid 10-digit mobile number",
	"strongpwd": "%s must be at least 8 characters and include upper and lower case letters, a number and a special character",
}

var (
	registerOnce sync.Once
	standalone   = newStandalone()
)

func newStandalone() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Struct validates s against its validate tags outside of request
// binding. Failures come back as a validation AppError.
func Struct(s interface{}) error {
	if err := standalone.Struct(s); err != nil {
		return apperrors.Validation(Message(err))
	}
	return nil
}

// RegisterGin installs the custom tags on gin's binding validator. It is
// safe to call more than once.
func RegisterGin() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin binding engine is not go-playground/validator")
			return
		}
		err = Register(v)
	})
	return err
}

// Register adds the custom tags and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	for tag, fn := range map[string]validator.Func{
		"yesno":     yesNo,
		"inphone":   func(fl validator.FieldLevel) bool { return indianPhone.MatchString(fl.Field().String()) },
		"strongpwd": func(fl validator.FieldLevel) bool { return StrongPassword(fl.Field().String()) },
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

func yesNo(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "yes", "no":
		return true
	}
	return false
}

// StrongPassword requires 8+ characters with upper, lower, digit and a
// special character.
func StrongPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// ValidPhone reports whether s is a 10-digit Indian mobile number.
func ValidPhone(s string) bool {
	return indianPhone.MatchString(s)
}

// Message turns a binding error into one user-facing sentence.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		if format, ok := messages[e.Tag()]; ok {
			return fmt.Sprintf(format, e.Field())
		}
		return fmt.Sprintf("%s is invalid", e.Field())
	}
	return "Invalid request body"
}
