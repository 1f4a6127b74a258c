package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"paymux/payerr"
)

var (
	cardNumberRe    = regexp.MustCompile(`^\d{13,19}$`)
	ksaMobileRe     = regexp.MustCompile(`^(?:\+9665\d{8}|05\d{8})$`)
	decimalAmountRe = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
		return cardNumberRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ksamobile", func(fl validator.FieldLevel) bool {
		return ksaMobileRe.MatchString(fl.Field().String())
	})
	// Providers that take money as strings expect at most two decimals.
	_ = v.RegisterValidation("decimalamount", func(fl validator.FieldLevel) bool {
		return decimalAmountRe.MatchString(fl.Field().String())
	})
	return v
}

// ValidateParams validates a parameter struct (or pointer to one) against its
// tags and converts failures into an INVALID_REQUEST error with per-field
// detail. Non-struct values pass.
func ValidateParams(params any) error {
	if params == nil {
		return nil
	}
	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := validate.Struct(rv.Interface())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]payerr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg := fmt.Sprintf("failed %q constraint", fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("failed %q=%s constraint", fe.Tag(), fe.Param())
			}
			fields = append(fields, payerr.FieldError{Field: fe.Field(), Message: msg})
		}
		return payerr.InvalidRequest("", "invalid parameters", fields)
	}
	return payerr.InvalidRequest("", err.Error(), nil)
}
