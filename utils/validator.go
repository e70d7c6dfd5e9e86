package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a request struct and folds the field errors into
// one readable message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var messages []string
	for _, fieldErr := range err.(validator.ValidationErrors) {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must be at least "+fieldErr.Param())
		case "max":
			messages = append(messages, field+" must be at most "+fieldErr.Param())
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "oneof":
			messages = append(messages, field+" must be one of: "+fieldErr.Param())
		case "datetime":
			messages = append(messages, field+" must match format "+fieldErr.Param())
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return fmt.Errorf("%s", strings.Join(messages, ", "))
}
