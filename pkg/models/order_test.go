package models

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewOrderName(t *testing.T) {
	at := time.Date(2015, 10, 22, 12, 0, 0, 42*int(time.Millisecond), time.UTC)

	order, err := NewOrder("EN", OrderConfig{OrderNamePrefix: "name_test"}, WithClock(fixedClock(at)))
	require.NoError(t, err)

	assert.Equal(t, "name_test_20151022120000042", order.Name())
	assert.Equal(t, order.Name(), order.Name())
}

func TestNewOrderDefaultPrefix(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^translation_order_\d{14}\d{3}$`), order.Name())
}

func TestOrderNamesNeverCollide(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 999*int(time.Millisecond), time.UTC)
	cfg := OrderConfig{OrderNamePrefix: "burst"}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		order, err := NewOrder("EN", cfg, WithClock(fixedClock(at)))
		require.NoError(t, err)
		require.False(t, seen[order.Name()], "duplicate name %s", order.Name())
		require.Regexp(t, `^burst_\d{17}$`, order.Name())
		seen[order.Name()] = true

		// The real instant is kept for the dates.
		assert.Equal(t, at, order.RequestDate())
	}
	assert.Len(t, seen, 50)
}

func TestNewOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		source string
		cfg    OrderConfig
		key    string
	}{
		{"empty_source", "", DefaultOrderConfig(), "sourceLanguage"},
		{"blank_source", "   ", DefaultOrderConfig(), "sourceLanguage"},
		{"malformed_source", "not a language", DefaultOrderConfig(), "sourceLanguage"},
		{"negative_due_date", "EN", OrderConfig{DueDateOffsetDays: -1}, "dueDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := NewOrder(tt.source, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, order)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestOrderTargetLanguagesAreUnique(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)

	order.AddTargetLanguage("NL")
	order.AddTargetLanguage("FR")
	order.AddTargetLanguage("NL")
	order.AddTargetLanguage("DE")

	assert.Equal(t, []string{"NL", "FR", "DE"}, order.TargetLanguages())
}

func TestOrderFilesAreUnique(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)

	order.AddFile("FILENAME1.html")
	order.AddFile("FILENAME2.html")
	order.AddFile("FILENAME1.html")

	assert.Equal(t, []string{"FILENAME1.html", "FILENAME2.html"}, order.Files())
}

func TestOrderInstructionsKeepDuplicates(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)

	order.AddInstruction("first")
	order.AddInstruction("second")
	order.AddInstruction("first")

	assert.Equal(t, []string{"first", "second", "first"}, order.Instructions())
}

func TestOrderAccessorsReturnCopies(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)
	order.AddTargetLanguage("NL")

	langs := order.TargetLanguages()
	langs[0] = "XX"

	assert.Equal(t, []string{"NL"}, order.TargetLanguages())
}

func TestOrderDatesAreFrozen(t *testing.T) {
	at := time.Date(2015, 10, 22, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return at.Add(time.Duration(calls) * time.Hour)
	}

	cfg := DefaultOrderConfig()
	cfg.DueDateOffsetDays = 5
	order, err := NewOrder("EN", cfg, WithClock(clock))
	require.NoError(t, err)

	first := order.RequestDate()
	assert.Equal(t, first, order.RequestDate())
	assert.Equal(t, first.AddDate(0, 0, 5), order.DueDate())
	assert.Equal(t, order.DueDate(), order.DueDate())
	assert.Equal(t, 1, calls)
}

func TestOrderConfigDefaults(t *testing.T) {
	order, err := NewOrder("EN", DefaultOrderConfig())
	require.NoError(t, err)

	assert.True(t, order.NeedsConfirmation())
	assert.False(t, order.NeedsQuotation())
	assert.False(t, order.IsConfidential())
	assert.Equal(t, order.RequestDate(), order.DueDate())
	assert.Empty(t, order.Reference())
}

func TestOrderConfigFromMap(t *testing.T) {
	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"clientId": "CLIENT-ID",
		"templateId": "TEMPLATE-ID",
		"dueDate": 3,
		"issuedBy": "ISSUED-BY@DOMAIN.COM",
		"isConfidential": true,
		"needsQuotation": true,
		"unknown": ["ignored"]
	}`), &values))

	cfg, err := OrderConfigFromMap(values)
	require.NoError(t, err)

	assert.Equal(t, "CLIENT-ID", cfg.ClientID)
	assert.Equal(t, "TEMPLATE-ID", cfg.TemplateID)
	assert.Equal(t, 3, cfg.DueDateOffsetDays)
	assert.Equal(t, "ISSUED-BY@DOMAIN.COM", cfg.IssuedBy)
	assert.True(t, cfg.IsConfidential)
	assert.True(t, cfg.NeedsQuotation)
	assert.True(t, cfg.NeedsConfirmation, "defaults survive for absent keys")
	assert.Empty(t, cfg.OrderNamePrefix)
}

func TestOrderConfigFromMapWrongType(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		key    string
	}{
		{"string_as_int", map[string]any{"clientId": 12}, "clientId"},
		{"bool_as_string", map[string]any{"isConfidential": "yes"}, "isConfidential"},
		{"int_as_string", map[string]any{"dueDate": "3"}, "dueDate"},
		{"fractional_days", map[string]any{"dueDate": 1.5}, "dueDate"},
		{"negative_days", map[string]any{"dueDate": -2}, "dueDate"},
		{"huge_float_days", map[string]any{"dueDate": 1e19}, "dueDate"},
		{"huge_json_number", map[string]any{"dueDateOffsetDays": json.Number("10000000000000000000")}, "dueDateOffsetDays"},
		{"offset_alias_wrong_type", map[string]any{"dueDateOffsetDays": true}, "dueDateOffsetDays"},
		{"conflicting_offsets", map[string]any{"dueDate": 2, "dueDateOffsetDays": 3.0}, "dueDateOffsetDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OrderConfigFromMap(tt.values)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestOrderConfigFromMapOffsetAlias(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   int
	}{
		{"alias_only", map[string]any{"dueDateOffsetDays": 3.0}, 3},
		{"both_agree", map[string]any{"dueDate": 4, "dueDateOffsetDays": json.Number("4")}, 4},
		{"neither", map[string]any{}, DefaultOrderConfig().DueDateOffsetDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := OrderConfigFromMap(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DueDateOffsetDays)
		})
	}
}

func TestOrderConfigFromMapNilValues(t *testing.T) {
	cfg, err := OrderConfigFromMap(map[string]any{"needsConfirmation": nil, "clientId": nil})
	require.NoError(t, err)
	assert.Equal(t, DefaultOrderConfig(), cfg)
}
