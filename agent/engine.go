package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/Esclender/dai-assistant/llm"
	"github.com/Esclender/dai-assistant/recovery"
	"github.com/Esclender/dai-assistant/types"
	"github.com/Esclender/dai-assistant/utils"
)

func NewEngine(connector *llm.Connector, retryer *recovery.Retryer) *Engine {
	if retryer == nil {
		retryer = recovery.NewRetryer(nil)
	}
	return &Engine{connector: connector, retryer: retryer}
}

/**
 * Engine renders an agent's prompt from its inputs, calls the model
 * through the retry policy, and parses the answer against the agent's
 * output contract. Transient provider failures get retried; answers
 * violating a declared output format surface as invalid-output errors
 * so callers can fall back or fail the task.
 */
type Engine struct {
	connector *llm.Connector
	retryer   *recovery.Retryer
}

func (e *Engine) Execute(ctx context.Context, def *Definition, inputs types.Data) (types.Data, error) {
	if def == nil {
		return nil, errors.BadRequestf("definition is nil")
	}
	if err := def.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	request := &llm.Request{
		Prompt:      e.renderPrompt(def, inputs),
		Model:       def.ModelName,
		Temperature: def.Temperature,
		MaxTokens:   def.MaxTokens,
	}

	result, err := e.retryer.Do(ctx, func(ctx context.Context) (any, error) {
		return e.connector.Generate(ctx, request)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "agent %s", def.Name)
	}

	parsed, err := parseOutput(def, result.(*llm.Response).Text)
	if err != nil {
		return nil, errors.Annotatef(err, "agent %s", def.Name)
	}
	return parsed, nil
}

// Operation adapts an agent execution to the task handler contract so
// agent steps drop straight into a task graph. The task's named
// inputs become the prompt inputs.
func (e *Engine) Operation(def *Definition) types.TaskHandler {
	return func(ctx types.Context, args []any, inputs types.Data) (any, error) {
		result, err := e.Execute(ctx, def, inputs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return result, nil
	}
}

// renderPrompt substitutes {{key}} placeholders from the inputs and
// prepends the agent's identity.
func (e *Engine) renderPrompt(def *Definition, inputs types.Data) string {
	prompt := def.PromptTemplate
	for key, value := range inputs {
		prompt = strings.ReplaceAll(prompt, "{{"+key+"}}", stringify(value))
	}
	for _, key := range def.InputFormat {
		if _, exists := inputs.Get(key); !exists {
			log.Debugf("agent %s: declared input %s not provided", def.Name, key)
		}
	}
	identity := "You are a " + def.Role + "."
	if def.Backstory != "" {
		identity += " " + def.Backstory
	}
	return identity + "\n\n" + prompt
}

// parseOutput decodes the answer against the declared output contract.
// Without a contract the raw text is wrapped untouched.
func parseOutput(def *Definition, text string) (types.Data, error) {
	if len(def.OutputFormat) == 0 {
		return types.Data{"raw_output": text}, nil
	}
	parsed := types.Data{}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, types.NewInvalidOutputErrorf("expected a JSON object: %v", err)
	}
	missing := make([]string, 0)
	for _, key := range def.OutputFormat {
		if _, exists := parsed.Get(key); !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, types.NewInvalidOutputErrorf("answer is missing required keys [%s]", strings.Join(missing, ", "))
	}
	return parsed, nil
}

// stripFences unwraps a ``` fenced block when the model added one.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	if text, err := cast.ToStringE(value); err == nil {
		return text
	}
	raw, err := utils.Serialize(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(raw)
}
