package validation

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

type Violations struct {
	Errors map[string][]error
}

func (violations Violations) MarshalJSON() ([]byte, error) {
	errors := make(map[string][]string)
	for fieldName, fieldErrors := range violations.Errors {
		errors[fieldName] = make([]string, len(fieldErrors))
		for index, fieldError := range fieldErrors {
			errors[fieldName][index] = fieldError.Error()
		}
	}

	return json.Marshal(map[string]map[string][]string{
		"errors": errors,
	})
}

func (violations Violations) IsEmpty() bool {
	return len(violations.Errors) == 0
}

// ValidateFields checks every field that has rules. Fields absent from data
// are validated as empty strings so that "required" can fire.
//
// Rules: required, integer, boolean, min:N and max:N (length in runes),
// contains:S.
func ValidateFields(data map[string]string, rules map[string][]string) Violations {
	var violations Violations
	violations.Errors = make(map[string][]error)

	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		value, present := data[name]

		var errorCollection []error
		for _, rule := range rules[name] {
			if !present && rule != "required" {
				continue
			}
			if err := validate(rule, name, value); err != nil {
				errorCollection = append(errorCollection, err)
			}
		}

		if len(errorCollection) != 0 {
			violations.Errors[name] = errorCollection
		}
	}

	return violations
}

func validate(rule string, name string, value string) error {
	ruleName, argument, _ := strings.Cut(rule, ":")

	switch ruleName {
	case "required":
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	case "integer":
		if !ValidateInteger(value) {
			return fmt.Errorf("%s must be an integer", name)
		}
	case "boolean":
		if !ValidateBoolean(value) {
			return fmt.Errorf("%s must be a boolean", name)
		}
	case "min", "max":
		size, err := strconv.Atoi(argument)
		if err != nil {
			return fmt.Errorf("invalid validation rule :: %s", rule)
		}

		length := utf8.RuneCountInString(value)
		if ruleName == "min" && length < size {
			return fmt.Errorf("%s must be at least %d characters", name, size)
		}
		if ruleName == "max" && length > size {
			return fmt.Errorf("%s may not be longer than %d characters", name, size)
		}
	case "contains":
		if !ValidateContains(value, argument) {
			return fmt.Errorf("%s must contain %q", name, argument)
		}
	default:
		return fmt.Errorf("invalid validation rule :: %s", rule)
	}

	return nil
}

// Numeric operations
func ValidateInteger(value string) bool {
	_, err := strconv.Atoi(value)
	return err == nil
}

// Boolean operations
func ValidateBoolean(value string) bool {
	return ValidateTrue(value) || ValidateFalse(value)
}

func ValidateTrue(value string) bool {
	return value == "1" || value == "true" || value == "on"
}

func ValidateFalse(value string) bool {
	return value == "0" || value == "false" || value == "off"
}

// String operations
func ValidateContains(value string, needle string) bool {
	return strings.Contains(value, needle)
}
