package server

import (
	"reflect"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

// registerValidators teaches gin's validator about decimal amounts and
// reading dates. Safe to call more than once.
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("decimalgte0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("dateonly", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateOnlyLayout, fl.Field().String())
		return err == nil
	})
}
