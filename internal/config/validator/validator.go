// Package validator provides configuration validation
package validator

import (
	"fmt"
	"net"
	"strings"

	"rowsync-core/internal/config/schema"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string // Field path (e.g., "sync.base_delay")
	Value   string // Current value (masked for secrets)
	Message string // Error message
	Hint    string // Fix suggestion
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a formatted error message
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n\n")

	for i, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Field))
		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     Current value: %s\n", err.Value))
		}
		sb.WriteString(fmt.Sprintf("     Error: %s\n", err.Message))
		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     Hint: %s\n", err.Hint))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Hint:    hint,
	})
}

// Validator validates configuration
type Validator struct {
	rules []ValidationRule
}

// ValidationRule is a function that validates configuration
type ValidationRule func(cfg *schema.Root, result *ValidationResult)

// NewValidator creates a new Validator with default rules
func NewValidator() *Validator {
	v := &Validator{
		rules: make([]ValidationRule, 0),
	}

	v.AddRule(validateLog)
	v.AddRule(validateBroker)
	v.AddRule(validateSync)
	v.AddRule(validateAPI)
	v.AddRule(validateDependencies)

	return v
}

// AddRule adds a validation rule
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Validate validates the configuration
func (v *Validator) Validate(cfg *schema.Root) *ValidationResult {
	result := &ValidationResult{
		Errors: make([]ValidationError, 0),
	}

	for _, rule := range v.rules {
		rule(cfg, result)
	}

	return result
}

// ValidateConfig is a convenience function that creates a validator and validates
func ValidateConfig(cfg *schema.Root) *ValidationResult {
	return NewValidator().Validate(cfg)
}

// ============================================================================
// Validation Rules
// ============================================================================

func validateLog(cfg *schema.Root, result *ValidationResult) {
	validateLogLevel("log.level", cfg.Log.Level, result)
	validateLogFormat("log.format", cfg.Log.Format, result)

	switch cfg.Log.Output {
	case "", "stderr", "stdout", "discard":
	case "file":
		if cfg.Log.File == "" {
			result.AddError("log.file",
				"",
				"file is required when output is file",
				"Set log.file to a writable path")
		}
	default:
		result.AddError("log.output",
			cfg.Log.Output,
			"invalid log output",
			"Use one of: stderr, stdout, discard, file")
	}
}

func validateBroker(cfg *schema.Root, result *ValidationResult) {
	switch cfg.Broker.Type {
	case "", schema.BrokerTypeMemory:
	case schema.BrokerTypeRedis:
		if len(cfg.Broker.Redis.Addrs) == 0 {
			result.AddError("broker.redis.addrs",
				"[]",
				"at least one address is required for the redis broker",
				"Set redis address, e.g., localhost:6379")
		}
		if !cfg.Broker.Redis.ClusterMode && (cfg.Broker.Redis.DB < 0 || cfg.Broker.Redis.DB > 15) {
			result.AddError("broker.redis.db",
				fmt.Sprintf("%d", cfg.Broker.Redis.DB),
				"redis.db must be between 0 and 15",
				"Set a value between 0 and 15")
		}
	default:
		result.AddError("broker.type",
			cfg.Broker.Type,
			"invalid broker type",
			"Use one of: memory, redis")
	}
}

func validateSync(cfg *schema.Root, result *ValidationResult) {
	s := cfg.Sync

	if s.Transport != schema.TransportBroker && s.Transport != schema.TransportPostgres {
		result.AddError("sync.transport",
			s.Transport,
			"invalid transport",
			"Use one of: broker, postgres")
	}

	if s.BaseDelay <= 0 {
		result.AddError("sync.base_delay",
			s.BaseDelay.String(),
			"base_delay must be positive",
			"Set a value > 0, e.g., 1s")
	}
	if s.MaxDelay < s.BaseDelay {
		result.AddError("sync.max_delay",
			s.MaxDelay.String(),
			"max_delay must be >= base_delay",
			fmt.Sprintf("Set a value >= %s", s.BaseDelay))
	}
	if s.Jitter < 0 || s.Jitter >= 1 {
		result.AddError("sync.jitter",
			fmt.Sprintf("%g", s.Jitter),
			"jitter must be in [0, 1)",
			"Use 0 to disable or a fraction such as 0.2")
	}
	if s.SubscribeTimeout < 0 {
		result.AddError("sync.subscribe_timeout",
			s.SubscribeTimeout.String(),
			"subscribe_timeout must not be negative",
			"Use 0 to disable the timeout")
	}
	if s.BufferSize < 0 {
		result.AddError("sync.buffer_size",
			fmt.Sprintf("%d", s.BufferSize),
			"buffer_size must not be negative",
			"Set a value >= 0")
	}
	if s.TombstoneSize < 0 {
		result.AddError("sync.tombstone_size",
			fmt.Sprintf("%d", s.TombstoneSize),
			"tombstone_size must not be negative",
			"Use 0 to disable tombstones")
	}
	for i, topic := range s.Topics {
		if strings.TrimSpace(topic) == "" {
			result.AddError(fmt.Sprintf("sync.topics[%d]", i),
				"",
				"topic must not be empty",
				"Remove the empty entry")
		}
	}
}

func validateAPI(cfg *schema.Root, result *ValidationResult) {
	if cfg.API.Listen != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.API.Listen); err != nil {
			result.AddError("api.listen",
				cfg.API.Listen,
				"invalid listen address",
				"Use format host:port, e.g., 127.0.0.1:8080")
		}
	}
	if cfg.API.WatchBuffer < 1 {
		result.AddError("api.watch_buffer",
			fmt.Sprintf("%d", cfg.API.WatchBuffer),
			"watch_buffer must be at least 1",
			"Set a positive value")
	}
}

// validateDependencies validates configuration dependencies
func validateDependencies(cfg *schema.Root, result *ValidationResult) {
	if cfg.Sync.Transport == schema.TransportPostgres && cfg.Postgres.DSN.IsEmpty() {
		result.AddError("postgres.dsn",
			"",
			"dsn is required by the postgres transport",
			"Set postgres.dsn or ROWSYNC_POSTGRES_DSN")
	}
	if cfg.Sync.Resync && cfg.Postgres.DSN.IsEmpty() {
		result.AddError("postgres.dsn",
			"",
			"dsn is required when resync is enabled",
			"Set postgres.dsn or disable sync.resync")
	}
	if cfg.Sync.Resync && cfg.Postgres.OrderColumn == "" {
		result.AddError("postgres.order_column",
			"",
			"order_column is required when resync is enabled",
			"Set the column snapshots are ordered by, e.g., id")
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func validateLogLevel(field, level string, result *ValidationResult) {
	validLevels := map[string]bool{
		schema.LogLevelDebug: true,
		schema.LogLevelInfo:  true,
		schema.LogLevelWarn:  true,
		schema.LogLevelError: true,
	}
	if !validLevels[level] && level != "" {
		result.AddError(field,
			level,
			"invalid log level",
			"Use one of: debug, info, warn, error")
	}
}

func validateLogFormat(field, format string, result *ValidationResult) {
	validFormats := map[string]bool{
		schema.LogFormatText: true,
		schema.LogFormatJSON: true,
	}
	if !validFormats[format] && format != "" {
		result.AddError(field,
			format,
			"invalid log format",
			"Use one of: text, json")
	}
}
