package llm

import (
	"sync"

	"github.com/Esclender/dai-assistant/types"
)

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{models: make(map[string]*modelUsage)}
}

/**
 * UsageTracker accumulates token accounting across requests, keyed by
 * "provider:model". Providers report usage under different names; both
 * the openai shape (PromptTokens / CompletionTokens / TotalTokens) and
 * the anthropic one (InputTokens / OutputTokens) are understood.
 */
type UsageTracker struct {
	mu       sync.Mutex
	requests int64
	total    int64
	models   map[string]*modelUsage
}

type modelUsage struct {
	requests   int64
	prompt     int64
	completion int64
	total      int64
}

func (u *UsageTracker) Record(provider, model string, usage types.Data) {
	prompt := firstInt64(usage, "PromptTokens", "InputTokens")
	completion := firstInt64(usage, "CompletionTokens", "OutputTokens")
	total := firstInt64(usage, "TotalTokens")
	if total == 0 {
		total = prompt + completion
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests++
	u.total += total

	key := provider + ":" + model
	m := u.models[key]
	if m == nil {
		m = &modelUsage{}
		u.models[key] = m
	}
	m.requests++
	m.prompt += prompt
	m.completion += completion
	m.total += total
}

// Snapshot returns the accumulated counters as plain data.
func (u *UsageTracker) Snapshot() types.Data {
	u.mu.Lock()
	defer u.mu.Unlock()

	models := types.Data{}
	for key, m := range u.models {
		models[key] = types.Data{
			"requests":          m.requests,
			"prompt_tokens":     m.prompt,
			"completion_tokens": m.completion,
			"total_tokens":      m.total,
		}
	}
	return types.Data{
		"requests":     u.requests,
		"total_tokens": u.total,
		"models":       models,
	}
}

func (u *UsageTracker) Requests() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests
}

func (u *UsageTracker) TotalTokens() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

func firstInt64(usage types.Data, keys ...string) int64 {
	for _, key := range keys {
		if v, exists := usage.GetInt64(key); exists {
			return v
		}
	}
	return 0
}
