package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/Esclender/dai-assistant/llm"
	"github.com/Esclender/dai-assistant/recovery"
	"github.com/Esclender/dai-assistant/types"
)

var _ llms.Model = &scriptedModel{}

type scriptedModel struct {
	mu      sync.Mutex
	calls   int
	replies []string
	errs    []error
	prompts []string
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			m.prompts = append(m.prompts, text.Text)
		}
	}

	index := m.calls
	m.calls++
	if index < len(m.errs) && m.errs[index] != nil {
		return nil, m.errs[index]
	}
	reply := "done"
	if index < len(m.replies) {
		reply = m.replies[index]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        reply,
		StopReason:     "stop",
		GenerationInfo: map[string]any{"TotalTokens": 10},
	}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("use GenerateContent")
}

func newTestEngine(model llms.Model) *Engine {
	connector := llm.NewConnector(nil)
	connector.RegisterProvider(llm.ProviderOpenAI, model)
	retryer := recovery.NewRetryer(&types.RetryOptions{
		MaxAttempts:    3,
		BackoffFactor:  2,
		BackoffUnit:    time.Millisecond,
		RetryableKinds: types.DefaultRetryableKinds(),
	})
	return NewEngine(connector, retryer)
}

type stubContext struct {
	context.Context
}

func (s stubContext) GetRunID() string { return "test-run" }

func TestRenderPrompt(t *testing.T) {
	engine := NewEngine(nil, nil)

	def := NewDefinition("pm_agent", "Product Manager")
	def.Backstory = "You love roadmaps."
	def.PromptTemplate = "Project: {{project_name}}\nBudget: {{budget}}\nGoals: {{goals}}\nOwner: {{owner}}"

	prompt := engine.renderPrompt(def, types.Data{
		"project_name": "webshop",
		"budget":       4200,
		"goals":        []string{"fast", "cheap"},
	})
	assert.True(t, strings.HasPrefix(prompt, "You are a Product Manager. You love roadmaps.\n\n"))
	assert.Contains(t, prompt, "Project: webshop")
	assert.Contains(t, prompt, "Budget: 4200")
	assert.Contains(t, prompt, `Goals: ["fast","cheap"]`)
	// unreplaced placeholders stay literal
	assert.Contains(t, prompt, "Owner: {{owner}}")

	def = NewDefinition("helper", "Helper")
	def.PromptTemplate = "Assist."
	prompt = engine.renderPrompt(def, nil)
	assert.Equal(t, "You are a Helper.\n\nAssist.", prompt)
}

func TestParseOutputRaw(t *testing.T) {
	def := NewDefinition("writer", "Writer")
	def.PromptTemplate = "x"

	parsed, err := parseOutput(def, "a plain answer")
	assert.Nil(t, err)
	assert.Equal(t, types.Data{"raw_output": "a plain answer"}, parsed)
}

func TestParseOutputContract(t *testing.T) {
	def := NewDefinition("dev_agent", "Developer")
	def.PromptTemplate = "x"
	def.OutputFormat = []string{"summary", "files"}

	parsed, err := parseOutput(def, `{"summary": "ok", "files": ["main.go"]}`)
	assert.Nil(t, err)
	summary, _ := parsed.GetString("summary")
	assert.Equal(t, "ok", summary)

	// fenced answers are unwrapped before decoding
	fenced := "```json\n{\"summary\": \"ok\", \"files\": []}\n```"
	parsed, err = parseOutput(def, fenced)
	assert.Nil(t, err)
	_, exists := parsed.Get("files")
	assert.True(t, exists)

	_, err = parseOutput(def, `{"summary": "ok"}`)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindInvalidOutput, types.KindOf(err))
	assert.Contains(t, err.Error(), "files")

	_, err = parseOutput(def, "not json at all")
	assert.NotNil(t, err)
	assert.Equal(t, types.KindInvalidOutput, types.KindOf(err))
}

func TestExecuteParsesContract(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"summary": "built", "files": ["main.go"]}`}}
	engine := newTestEngine(model)

	def := NewDefinition("dev_agent", "Developer")
	def.PromptTemplate = "Build {{component}}"
	def.OutputFormat = []string{"summary", "files"}

	result, err := engine.Execute(context.Background(), def, types.Data{"component": "parser"})
	assert.Nil(t, err)

	summary, _ := result.GetString("summary")
	assert.Equal(t, "built", summary)
	assert.Equal(t, 1, len(model.prompts))
	assert.True(t, strings.HasPrefix(model.prompts[0], "You are a Developer."))
	assert.Contains(t, model.prompts[0], "Build parser")
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	model := &scriptedModel{
		errs:    []error{errors.New("request timed out")},
		replies: []string{"", "recovered"},
	}
	engine := newTestEngine(model)

	def := NewDefinition("writer", "Writer")
	def.PromptTemplate = "Write."

	result, err := engine.Execute(context.Background(), def, nil)
	assert.Nil(t, err)
	raw, _ := result.GetString("raw_output")
	assert.Equal(t, "recovered", raw)
	assert.Equal(t, 2, model.calls)
}

func TestExecuteInvalidOutputNotRetried(t *testing.T) {
	model := &scriptedModel{replies: []string{"not json", `{"a": 1}`}}
	engine := newTestEngine(model)

	def := NewDefinition("dev_agent", "Developer")
	def.PromptTemplate = "Build."
	def.OutputFormat = []string{"a"}

	_, err := engine.Execute(context.Background(), def, nil)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindInvalidOutput, types.KindOf(err))
	assert.Equal(t, 1, model.calls)
}

func TestExecuteValidatesDefinition(t *testing.T) {
	engine := newTestEngine(&scriptedModel{})

	_, err := engine.Execute(context.Background(), nil, nil)
	assert.NotNil(t, err)
	assert.True(t, errors.IsBadRequest(err))

	_, err = engine.Execute(context.Background(), NewDefinition("helper", ""), nil)
	assert.NotNil(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestOperationAdapter(t *testing.T) {
	model := &scriptedModel{replies: []string{"drafted"}}
	engine := newTestEngine(model)

	def := NewDefinition("writer", "Writer")
	def.PromptTemplate = "Draft {{topic}}."

	op := engine.Operation(def)
	result, err := op(stubContext{context.Background()}, nil, types.Data{"topic": "a changelog"})
	assert.Nil(t, err)

	data := result.(types.Data)
	raw, _ := data.GetString("raw_output")
	assert.Equal(t, "drafted", raw)
	assert.Contains(t, model.prompts[0], "Draft a changelog.")
}
