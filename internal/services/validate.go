package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and reports the first failure
// as a ValidationError.
func validateInput(input any) error {
	err := inputValidator.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return invalid("%s", fieldMessage(fieldErrs[0]))
	}
	return invalid("Datos inválidos")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "El campo " + field + " es obligatorio"
	case "email":
		return "El email no es válido"
	case "min", "gte":
		return "El campo " + field + " debe ser al menos " + fe.Param()
	case "max", "lte":
		return "El campo " + field + " no puede exceder " + fe.Param()
	case "len":
		return "El campo " + field + " debe tener " + fe.Param() + " caracteres"
	case "oneof":
		return "Valor no válido para " + field
	default:
		return "El campo " + field + " no es válido"
	}
}
