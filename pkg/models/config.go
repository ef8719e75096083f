package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// OrderConfigFromMap builds an OrderConfig from loosely typed settings, for
// example a decoded JSON object. Unknown keys are ignored and nil values
// leave the default in place. A known key holding a value of the wrong type
// is a *ConfigurationError.
func OrderConfigFromMap(values map[string]any) (OrderConfig, error) {
	cfg := DefaultOrderConfig()

	strs := map[string]*string{
		"clientId":        &cfg.ClientID,
		"orderNamePrefix": &cfg.OrderNamePrefix,
		"templateId":      &cfg.TemplateID,
		"issuedBy":        &cfg.IssuedBy,
		"service":         &cfg.Service,
	}
	for key, dst := range strs {
		raw, ok := values[key]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return OrderConfig{}, wrongType(key, "string", raw)
		}
		*dst = s
	}

	bools := map[string]*bool{
		"isConfidential":    &cfg.IsConfidential,
		"needsConfirmation": &cfg.NeedsConfirmation,
		"needsQuotation":    &cfg.NeedsQuotation,
	}
	for key, dst := range bools {
		raw, ok := values[key]
		if !ok || raw == nil {
			continue
		}
		b, ok := raw.(bool)
		if !ok {
			return OrderConfig{}, wrongType(key, "bool", raw)
		}
		*dst = b
	}

	days, err := dueDateOffset(values)
	if err != nil {
		return OrderConfig{}, err
	}
	if days != nil {
		cfg.DueDateOffsetDays = *days
	}

	if err := cfg.Validate(); err != nil {
		return OrderConfig{}, err
	}
	return cfg, nil
}

// dueDateOffset reads the offset from dueDate or its alias dueDateOffsetDays.
// Both may be given only when they agree.
func dueDateOffset(values map[string]any) (*int, error) {
	var days *int
	for _, key := range []string{"dueDate", "dueDateOffsetDays"} {
		raw, ok := values[key]
		if !ok || raw == nil {
			continue
		}
		n, err := toInt(key, raw)
		if err != nil {
			return nil, err
		}
		if days != nil && *days != n {
			return nil, &ConfigurationError{
				Key:    key,
				Reason: fmt.Sprintf("conflicts with dueDate (%d != %d)", n, *days),
			}
		}
		days = &n
	}
	return days, nil
}

func toInt(key string, raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, outOfRange(key, v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("must be a whole number, got %v", v)}
		}
		if v < math.MinInt || v >= -math.MinInt {
			return 0, outOfRange(key, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, &ConfigurationError{Key: key, Reason: fmt.Sprintf("must be a whole number in range, got %s", v), Err: err}
		}
		if n < math.MinInt || n > math.MaxInt {
			return 0, outOfRange(key, n)
		}
		return int(n), nil
	default:
		return 0, wrongType(key, "integer", raw)
	}
}

func outOfRange(key string, v any) error {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf("out of range, got %v", v)}
}

func wrongType(key, want string, got any) error {
	return &ConfigurationError{
		Key:    key,
		Reason: fmt.Sprintf("expected %s, got %T", want, got),
	}
}
