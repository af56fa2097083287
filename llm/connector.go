package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/mcuadros/go-defaults"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Esclender/dai-assistant/types"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultModel = "gpt-4-turbo"
)

func NewRequest(prompt string) *Request {
	request := &Request{Prompt: prompt}
	defaults.SetDefaults(request)
	return request
}

type Request struct {
	Prompt string
	Model  string `default:"gpt-4-turbo"`
	/**
	 * default: 0.7, sampling temperature passed through to the provider.
	 */
	Temperature float64 `default:"0.7"`
	/**
	 * default: 1000, completion budget passed through to the provider.
	 */
	MaxTokens int `default:"1000"`
}

// Response is the provider-independent view of one completion.
type Response struct {
	Text       string
	StopReason string
	// token accounting as reported by the provider, untouched.
	Usage types.Data
}

func NewConnector(options *types.AssistantOptions) *Connector {
	c := &Connector{
		providers: make(map[string]llms.Model),
		usage:     NewUsageTracker(),
	}
	c.registerConfigured(options)
	return c
}

/**
 * Connector routes completion requests to a registered provider by
 * model name: claude models go to anthropic, everything else to
 * openai. Providers come from the assistant options (explicit
 * credentials, or the provider's environment credentials when the
 * entry is nil); tests install fakes through RegisterProvider.
 */
type Connector struct {
	mu        sync.RWMutex
	providers map[string]llms.Model
	usage     *UsageTracker
}

// RegisterProvider installs the model serving a provider name,
// replacing any previous one.
func (c *Connector) RegisterProvider(name string, model llms.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = model
}

// Providers lists the registered provider names.
func (c *Connector) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

// Usage exposes the accumulated token accounting.
func (c *Connector) Usage() *UsageTracker {
	return c.usage
}

// Generate sends one prompt to the provider owning the requested model
// and returns the first choice.
func (c *Connector) Generate(ctx context.Context, request *Request) (*Response, error) {
	if request == nil || request.Prompt == "" {
		return nil, errors.BadRequestf("prompt is empty")
	}
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	providerName := providerFor(model)
	c.mu.RLock()
	provider, exists := c.providers[providerName]
	c.mu.RUnlock()
	if !exists {
		return nil, types.NewConfigurationErrorf("no %s provider registered for model %s", providerName, model)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, request.Prompt),
	}
	opts := []llms.CallOption{llms.WithModel(model)}
	if request.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(request.Temperature))
	}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}

	completion, err := provider.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, errors.Trace(classifyProviderError(err))
	}
	if len(completion.Choices) == 0 {
		return nil, types.NewInvalidOutputErrorf("provider %s returned no choices for model %s", providerName, model)
	}

	choice := completion.Choices[0]
	usage := types.Data(choice.GenerationInfo)
	c.usage.Record(providerName, model, usage)

	return &Response{
		Text:       choice.Content,
		StopReason: choice.StopReason,
		Usage:      usage,
	}, nil
}

// CountTokens estimates how many tokens the text costs under the
// model's encoding.
func (c *Connector) CountTokens(model, text string) int {
	return llms.CountTokens(model, text)
}

// providerFor routes a model name to its provider.
func providerFor(model string) string {
	if strings.HasPrefix(model, "claude") {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// classifyProviderError maps a provider failure onto the error
// taxonomy. Rate limiting is transient and classified as a timeout so
// the default retry policy backs off and tries again.
func classifyProviderError(err error) error {
	if types.KindOf(err) != types.KindGeneric {
		return err
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "context length") ||
		strings.Contains(message, "token limit") ||
		strings.Contains(message, "too many tokens"):
		return types.NewClassifiedError(types.KindTokenLimit, err)
	case strings.Contains(message, "timeout") ||
		strings.Contains(message, "timed out") ||
		strings.Contains(message, "rate limit"):
		return types.NewClassifiedError(types.KindTimeout, err)
	}
	return err
}

func (c *Connector) registerConfigured(options *types.AssistantOptions) {
	var openaiConfig, anthropicConfig *types.ProviderConfig
	if options != nil {
		openaiConfig = options.OpenAI
		anthropicConfig = options.Anthropic
	}

	if model, err := newOpenAI(openaiConfig); err != nil {
		log.Debugf("openai provider not available: %v", err)
	} else {
		c.RegisterProvider(ProviderOpenAI, model)
	}
	if model, err := newAnthropic(anthropicConfig); err != nil {
		log.Debugf("anthropic provider not available: %v", err)
	} else {
		c.RegisterProvider(ProviderAnthropic, model)
	}
}

func newOpenAI(config *types.ProviderConfig) (llms.Model, error) {
	opts := make([]openai.Option, 0, 2)
	if config != nil {
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
	}
	return openai.New(opts...)
}

func newAnthropic(config *types.ProviderConfig) (llms.Model, error) {
	opts := make([]anthropic.Option, 0, 2)
	if config != nil {
		if config.APIKey != "" {
			opts = append(opts, anthropic.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
		}
	}
	return anthropic.New(opts...)
}
