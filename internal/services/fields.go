package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"task-tracker/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkAllowed rejects a patch outright if it names any field outside
// allowed. Nothing is applied before this check passes.
func checkAllowed(patch map[string]interface{}, allowed map[string]struct{}) error {
	var rejected []string
	for key := range patch {
		if _, ok := allowed[key]; !ok {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return fmt.Errorf("%w (%s)", models.ErrInvalidUpdates, strings.Join(rejected, ", "))
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	return name, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: email is invalid", models.ErrValidation)
	}
	return email, nil
}

func checkAge(age int) error {
	if age < 0 {
		return fmt.Errorf("%w: age must be a positive number", models.ErrValidation)
	}
	return nil
}

func normalizeDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if description == "" {
		return "", fmt.Errorf("%w: description is required", models.ErrValidation)
	}
	return description, nil
}

func stringField(patch map[string]interface{}, key string) (string, error) {
	value, ok := patch[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", models.ErrValidation, key)
	}
	return value, nil
}

func boolField(patch map[string]interface{}, key string) (bool, error) {
	value, ok := patch[key].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", models.ErrValidation, key)
	}
	return value, nil
}

// intField accepts the numeric shapes a JSON decoder can produce, but only
// when they hold a whole number that fits in 32 bits.
func intField(patch map[string]interface{}, key string) (int, error) {
	invalid := fmt.Errorf("%w: %s must be an integer", models.ErrValidation, key)

	var n int64
	switch v := patch[key].(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, invalid
		}
		n = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, invalid
		}
		n = parsed
	default:
		return 0, invalid
	}

	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, invalid
	}
	return int(n), nil
}
