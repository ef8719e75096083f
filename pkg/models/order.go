package models

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

const DefaultOrderNamePrefix = "translation_order"

// OrderConfig is the fixed configuration bag of an order. The zero value is
// not the default: use DefaultOrderConfig and override what is needed.
type OrderConfig struct {
	ClientID          string `json:"clientId"`
	OrderNamePrefix   string `json:"orderNamePrefix"`
	TemplateID        string `json:"templateId"`
	DueDateOffsetDays int    `json:"dueDate"`
	IssuedBy          string `json:"issuedBy"`
	IsConfidential    bool   `json:"isConfidential"`
	Service           string `json:"service"`
	NeedsConfirmation bool   `json:"needsConfirmation"`
	NeedsQuotation    bool   `json:"needsQuotation"`
}

func DefaultOrderConfig() OrderConfig {
	return OrderConfig{
		NeedsConfirmation: true,
	}
}

// Order is one translation work order. It is not safe for concurrent
// mutation.
type Order struct {
	name            string
	sourceLanguage  string
	targetLanguages []string
	instructions    []string
	reference       string
	files           []string
	config          OrderConfig
	requestDate     time.Time
}

type orderOptions struct {
	now func() time.Time
}

type OrderOption func(*orderOptions)

// WithClock replaces time.Now as the source of the construction instant.
func WithClock(now func() time.Time) OrderOption {
	return func(o *orderOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrder(sourceLanguage string, config OrderConfig, opts ...OrderOption) (*Order, error) {
	options := orderOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	sourceLanguage = strings.TrimSpace(sourceLanguage)
	if sourceLanguage == "" {
		return nil, &ConfigurationError{Key: "sourceLanguage", Reason: "is required"}
	}
	if _, err := language.Parse(sourceLanguage); err != nil {
		return nil, &ConfigurationError{
			Key:    "sourceLanguage",
			Reason: fmt.Sprintf("%q is not a valid language tag", sourceLanguage),
			Err:    err,
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	requestDate := options.now()
	return &Order{
		name:           names.next(config.namePrefix(), requestDate),
		sourceLanguage: sourceLanguage,
		config:         config,
		requestDate:    requestDate,
	}, nil
}

func (c OrderConfig) Validate() error {
	if c.DueDateOffsetDays < 0 {
		return &ConfigurationError{
			Key:    "dueDate",
			Reason: fmt.Sprintf("must be >= 0, got %d", c.DueDateOffsetDays),
		}
	}
	return nil
}

func (c OrderConfig) namePrefix() string {
	if c.OrderNamePrefix == "" {
		return DefaultOrderNamePrefix
	}
	return c.OrderNamePrefix
}

func (o *Order) Name() string            { return o.name }
func (o *Order) SourceLanguage() string  { return o.sourceLanguage }
func (o *Order) ClientID() string        { return o.config.ClientID }
func (o *Order) TemplateID() string      { return o.config.TemplateID }
func (o *Order) IssuedBy() string        { return o.config.IssuedBy }
func (o *Order) IsConfidential() bool    { return o.config.IsConfidential }
func (o *Order) Service() string         { return o.config.Service }
func (o *Order) NeedsConfirmation() bool { return o.config.NeedsConfirmation }
func (o *Order) NeedsQuotation() bool    { return o.config.NeedsQuotation }
func (o *Order) Config() OrderConfig     { return o.config }

// RequestDate is the construction instant. It does not move between calls.
func (o *Order) RequestDate() time.Time {
	return o.requestDate
}

// DueDate is the request date plus the configured number of days.
func (o *Order) DueDate() time.Time {
	return o.requestDate.AddDate(0, 0, o.config.DueDateOffsetDays)
}

func (o *Order) AddTargetLanguage(lang string) {
	if !slices.Contains(o.targetLanguages, lang) {
		o.targetLanguages = append(o.targetLanguages, lang)
	}
}

func (o *Order) TargetLanguages() []string {
	return slices.Clone(o.targetLanguages)
}

func (o *Order) AddInstruction(instruction string) {
	o.instructions = append(o.instructions, instruction)
}

func (o *Order) Instructions() []string {
	return slices.Clone(o.instructions)
}

func (o *Order) SetReference(reference string) {
	o.reference = reference
}

func (o *Order) Reference() string {
	return o.reference
}

func (o *Order) AddFile(fileName string) {
	if !slices.Contains(o.files, fileName) {
		o.files = append(o.files, fileName)
	}
}

func (o *Order) Files() []string {
	return slices.Clone(o.files)
}

// nameRegistry hands out order names. Two names for the same prefix are
// never equal within a process: when the millisecond stamp does not move
// forward, it is advanced past the last one issued.
type nameRegistry struct {
	mutex sync.Mutex
	last  map[string]int64
}

var names = &nameRegistry{last: make(map[string]int64)}

func (r *nameRegistry) next(prefix string, at time.Time) string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stamp := at.UnixMilli()
	if last, ok := r.last[prefix]; ok && stamp <= last {
		stamp = last + 1
	}
	r.last[prefix] = stamp

	return FormatOrderName(prefix, time.UnixMilli(stamp).In(at.Location()))
}

// FormatOrderName renders {prefix}_{YYYYMMDDHHmmss}{mmm}.
func FormatOrderName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s%03d", prefix, at.Format("20060102150405"), at.Nanosecond()/int(time.Millisecond))
}
