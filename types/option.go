package types

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

func NewExecuteOptions() *ExecuteOptions {
	opts := &ExecuteOptions{}
	defaults.SetDefaults(opts)
	return opts
}

type ExecuteOptions struct {
	/**
	 * default: 5
	 * the executor never launches more than this many tasks from one
	 * ready-set selection.
	 */
	MaxConcurrent int `default:"5"`
	// identifies one run in logs and task contexts; generated when empty.
	RunID string
}

type ExecuteOption func(*ExecuteOptions)

func WithMaxConcurrent(concurrent int) ExecuteOption {
	return func(opts *ExecuteOptions) {
		opts.MaxConcurrent = concurrent
	}
}

func WithRunID(runID string) ExecuteOption {
	return func(opts *ExecuteOptions) {
		opts.RunID = runID
	}
}

func NewRetryOptions() *RetryOptions {
	opts := &RetryOptions{}
	defaults.SetDefaults(opts)
	opts.RetryableKinds = DefaultRetryableKinds()
	return opts
}

type RetryOptions struct {
	/**
	 * default: 3, total invocation budget including the first attempt.
	 */
	MaxAttempts int `default:"3"`
	/**
	 * default: 1.5, exponential base of the wait between attempts.
	 * Attempt n waits BackoffUnit * BackoffFactor^(n-1) before n+1.
	 */
	BackoffFactor float64 `default:"1.5"`
	/**
	 * default: 1s, the length of one backoff unit.
	 */
	BackoffUnit time.Duration `default:"1s"`
	// kinds eligible for another attempt; NewRetryOptions fills the
	// default set since tags cover scalars only.
	RetryableKinds []ErrorKind
}

type RetryOption func(*RetryOptions)

func WithMaxAttempts(attempts int) RetryOption {
	return func(opts *RetryOptions) {
		opts.MaxAttempts = attempts
	}
}

func WithBackoffFactor(factor float64) RetryOption {
	return func(opts *RetryOptions) {
		opts.BackoffFactor = factor
	}
}

func WithBackoffUnit(unit time.Duration) RetryOption {
	return func(opts *RetryOptions) {
		opts.BackoffUnit = unit
	}
}

func WithRetryableKinds(kinds ...ErrorKind) RetryOption {
	return func(opts *RetryOptions) {
		opts.RetryableKinds = kinds
	}
}

func NewAssistantOptions() *AssistantOptions {
	opts := &AssistantOptions{}
	defaults.SetDefaults(opts)
	opts.Retry = NewRetryOptions()
	return opts
}

type AssistantOptions struct {
	ProjectName string `default:"dai-project"`
	/**
	 * default: 5
	 * upper bound of agent tasks running at once within one pipeline.
	 */
	MaxConcurrent int `default:"5"`
	// directory custom agent definitions are saved to and loaded from.
	ConfigsDir string `default:"configs/agents"`
	// directory the output generator writes artifacts under.
	OutputDir string `default:"output"`
	/**
	 * default: false, only set it to true when doing testing or developing.
	 */
	MemStore bool `default:"false"`

	// PostgreSQL store configuration
	// If both MemStore and PostgresConfig are set, PostgresConfig takes precedence
	PostgresConfig *PostgresConfig

	Retry *RetryOptions

	// provider credentials; a nil entry falls back to the provider's
	// environment credentials, and providers with neither are skipped.
	OpenAI    *ProviderConfig
	Anthropic *ProviderConfig
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

type AssistantOption func(*AssistantOptions)

func WithProjectName(name string) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.ProjectName = name
	}
}

func SetMaxConcurrency(concurrency int) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.MaxConcurrent = concurrency
	}
}

func WithConfigsDir(dir string) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.ConfigsDir = dir
	}
}

func WithOutputDir(dir string) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.OutputDir = dir
	}
}

func EnableMemStore() AssistantOption {
	return func(opts *AssistantOptions) {
		opts.MemStore = true
	}
}

// WithPostgresConfig configures the assistant to use the PostgreSQL store
func WithPostgresConfig(config *PostgresConfig) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.PostgresConfig = config
	}
}

func WithRetryOptions(retry *RetryOptions) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.Retry = retry
	}
}

func WithOpenAI(config *ProviderConfig) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.OpenAI = config
	}
}

func WithAnthropic(config *ProviderConfig) AssistantOption {
	return func(opts *AssistantOptions) {
		opts.Anthropic = config
	}
}
