package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/shandysiswandi/otpgate/internal/pkg/strcase"
)

var reOTPCode = regexp.MustCompile(`^[0-9]{4,10}$`)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError maps snake_case field names to messages.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerOTPCode(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// Validate returns V10ValidationError when data violates its tags.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	errV10 := make(V10ValidationError, len(validateErrs))
	for _, fe := range validateErrs {
		errV10[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}

	return errV10
}

// registerOTPCode adds the "otpcode" tag: 4 to 10 ASCII digits. The exact
// configured length is checked by the caller.
func registerOTPCode(validate *validator.Validate, enTrans ut.Translator) error {
	err := validate.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		code, ok := fl.Field().Interface().(string)
		return ok && reOTPCode.MatchString(code)
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation("otpcode", enTrans,
		func(ut ut.Translator) error {
			return ut.Add("otpcode", "{0} must contain only digits", false)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, err := ut.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("failed to translate validation error", "tag", fe.Tag(), "error", err)
				return fe.Error()
			}
			return t
		},
	)
}
