package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jogardn/xconnect/internal/circuitbreaker"
	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. XCONNECT_HOST.
const Prefix = "XCONNECT"

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Protocol       string        `envconfig:"PROTOCOL" default:"ftp"`
	Host           string        `envconfig:"HOST"`
	Port           int           `envconfig:"PORT"`
	Username       string        `envconfig:"USERNAME"`
	Password       string        `envconfig:"PASSWORD"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"90s"`
	KnownHostsFile string        `envconfig:"KNOWN_HOSTS_FILE"`
	LocalRoot      string        `envconfig:"LOCAL_ROOT" default:"./lsp"`

	SendDir             string `envconfig:"SEND_DIR" default:"To_LSP"`
	SendProcessedDir    string `envconfig:"SEND_PROCESSED_DIR" default:"To_LSP_processed"`
	ReceiveDir          string `envconfig:"RECEIVE_DIR" default:"From_LSP"`
	ReceiveProcessedDir string `envconfig:"RECEIVE_PROCESSED_DIR" default:"From_LSP_processed"`

	WorkDir            string        `envconfig:"WORK_DIR"`
	OutputDir          string        `envconfig:"OUTPUT_DIR" default:"./deliveries"`
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	DeleteAfterReceive bool          `envconfig:"DELETE_AFTER_RECEIVE" default:"false"`
	DryRun             bool          `envconfig:"DRY_RUN" default:"false"`

	ClientID          string `envconfig:"CLIENT_ID"`
	OrderNamePrefix   string `envconfig:"ORDER_NAME_PREFIX" default:"translation_order"`
	TemplateID        string `envconfig:"TEMPLATE_ID"`
	DueDateOffsetDays int    `envconfig:"DUE_DATE_OFFSET_DAYS" default:"0"`
	IssuedBy          string `envconfig:"ISSUED_BY"`
	IsConfidential    bool   `envconfig:"IS_CONFIDENTIAL" default:"false"`
	Service           string `envconfig:"SERVICE"`
	NeedsConfirmation bool   `envconfig:"NEEDS_CONFIRMATION" default:"true"`
	NeedsQuotation    bool   `envconfig:"NEEDS_QUOTATION" default:"false"`

	DatabaseURL  string   `envconfig:"DATABASE_URL"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"xconnect-event-monitor"`
	HTTPAddr     string   `envconfig:"HTTP_ADDR" default:":8080"`

	BreakerMaxFailures int           `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Protocol) {
	case transport.ProtocolFTP, transport.ProtocolSFTP:
		if strings.TrimSpace(c.Host) == "" {
			return fmt.Errorf("%s_HOST is required for protocol %s", Prefix, c.Protocol)
		}
	case transport.ProtocolLocal:
		if strings.TrimSpace(c.LocalRoot) == "" {
			return fmt.Errorf("%s_LOCAL_ROOT is required for protocol local", Prefix)
		}
	default:
		return fmt.Errorf("%s_PROTOCOL must be ftp, sftp or local, got %q", Prefix, c.Protocol)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%s_PORT must be between 0 and 65535", Prefix)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s_TIMEOUT must be > 0", Prefix)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("%s_POLL_INTERVAL must be at least 1s", Prefix)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%s_OUTPUT_DIR is required", Prefix)
	}
	if c.BreakerMaxFailures < 1 {
		return fmt.Errorf("%s_BREAKER_MAX_FAILURES must be >= 1", Prefix)
	}
	if err := c.OrderDefaults().Validate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Directories() transport.Directories {
	return transport.Directories{
		Send:             c.SendDir,
		SendProcessed:    c.SendProcessedDir,
		Receive:          c.ReceiveDir,
		ReceiveProcessed: c.ReceiveProcessedDir,
	}
}

func (c *Config) Transport() transport.Config {
	return transport.Config{
		Protocol:       strings.ToLower(c.Protocol),
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		Timeout:        c.Timeout,
		Directories:    c.Directories(),
		KnownHostsFile: c.KnownHostsFile,
		Root:           c.LocalRoot,
	}
}

// OrderDefaults is the configuration applied to every order built by the
// agent.
func (c *Config) OrderDefaults() models.OrderConfig {
	return models.OrderConfig{
		ClientID:          c.ClientID,
		OrderNamePrefix:   c.OrderNamePrefix,
		TemplateID:        c.TemplateID,
		DueDateOffsetDays: c.DueDateOffsetDays,
		IssuedBy:          c.IssuedBy,
		IsConfidential:    c.IsConfidential,
		Service:           c.Service,
		NeedsConfirmation: c.NeedsConfirmation,
		NeedsQuotation:    c.NeedsQuotation,
	}
}

func (c *Config) Breaker() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:        "transport",
		MaxFailures: c.BreakerMaxFailures,
		OpenTimeout: c.BreakerOpenTimeout,
	}
}
