package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/Esclender/dai-assistant/store"
	"github.com/Esclender/dai-assistant/types"
	"github.com/Esclender/dai-assistant/utils"
)

const contextPrefix = "/context"

// AgentResult is one recorded agent output.
type AgentResult struct {
	Timestamp int64      `json:"timestamp"`
	Data      types.Data `json:"data"`
}

// Message is one inter-agent message.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
}

func NewContextManager(projectName string, s store.Store) *ContextManager {
	return &ContextManager{
		projectName: projectName,
		store:       s,
		agents:      make(map[string][]*AgentResult),
		artifacts:   types.Data{},
	}
}

/**
 * ContextManager collects results from every agent of a project and
 * builds the shared context agents consume: per-agent result history,
 * named artifacts, and the inter-agent message log. Snapshots persist
 * through the store under /context/<project> so a later run can pick
 * up where the previous one stopped.
 */
type ContextManager struct {
	mu          sync.Mutex
	projectName string
	store       store.Store

	agents    map[string][]*AgentResult
	artifacts types.Data
	messages  []*Message
}

func (m *ContextManager) ProjectName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectName
}

// AddAgentResult appends a timestamped result to the agent's history.
// A result may carry an "artifacts" map; its entries are published as
// artifacts under "<agentID>_<name>" for other agents to consume.
func (m *ContextManager) AddAgentResult(agentID string, result types.Data) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents[agentID] = append(m.agents[agentID], &AgentResult{
		Timestamp: time.Now().UnixNano(),
		Data:      result,
	})

	if artifacts, exists := result.Get("artifacts"); exists {
		for name, content := range cast.ToStringMap(artifacts) {
			m.artifacts.Set(agentID+"_"+name, content)
		}
	}
}

func (m *ContextManager) AddArtifact(artifactID string, content any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts.Set(artifactID, content)
}

func (m *ContextManager) AddMessage(from, to, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, &Message{
		Timestamp: time.Now().UnixNano(),
		From:      from,
		To:        to,
		Content:   content,
	})
}

// FullContext returns the whole shared context.
func (m *ContextManager) FullContext() types.Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.Data{
		"project_name": m.projectName,
		"agents":       utils.CloneMap(m.agents),
		"artifacts":    m.artifacts.Clone(),
		"messages":     append([]*Message(nil), m.messages...),
	}
}

// AgentContext returns the context filtered for one agent: the
// messages it sent or received, every artifact, and its own previous
// results when it has any.
func (m *ContextManager) AgentContext(agentID string) types.Data {
	m.mu.Lock()
	defer m.mu.Unlock()

	relevant := make([]*Message, 0)
	for _, message := range m.messages {
		if message.From == agentID || message.To == agentID {
			relevant = append(relevant, message)
		}
	}
	agentContext := types.Data{
		"project_name": m.projectName,
		"agent_id":     agentID,
		"messages":     relevant,
		"artifacts":    m.artifacts.Clone(),
	}
	if history, exists := m.agents[agentID]; exists {
		agentContext["previous_results"] = history
	}
	return agentContext
}

// LatestResults returns up to count results of the agent, latest
// first.
func (m *ContextManager) LatestResults(agentID string, count int) []types.Data {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.agents[agentID]
	if len(history) == 0 || count < 1 {
		return nil
	}
	ordered := make([]*AgentResult, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})
	if count > len(ordered) {
		count = len(ordered)
	}
	results := make([]types.Data, 0, count)
	for i := len(ordered) - 1; i >= len(ordered)-count; i-- {
		results = append(results, ordered[i].Data)
	}
	return results
}

// Save persists a snapshot of the context and returns its key.
func (m *ContextManager) Save(ctx context.Context) (string, error) {
	if m.store == nil {
		return "", errors.BadRequestf("no store configured")
	}
	b, err := m.serialize()
	if err != nil {
		return "", errors.Trace(err)
	}

	key := fmt.Sprintf("context_%d", time.Now().Unix())
	if err := m.store.Set(ctx, m.prefix(), key, b); err != nil {
		return "", errors.Trace(err)
	}
	log.Debugf("saved context of %s under %s/%s", m.projectName, m.prefix(), key)
	return key, nil
}

// Load replaces the current context with a saved snapshot.
func (m *ContextManager) Load(ctx context.Context, key string) error {
	if m.store == nil {
		return errors.BadRequestf("no store configured")
	}
	b, err := m.store.Get(ctx, m.prefix(), key)
	if err != nil {
		return errors.Trace(err)
	}
	if b == nil {
		return errors.NotFoundf("context snapshot %s", key)
	}

	snap := &snapshot{}
	if err := utils.Unserialize(b, snap); err != nil {
		return errors.Trace(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.ProjectName != "" {
		m.projectName = snap.ProjectName
	}
	m.agents = snap.Agents
	if m.agents == nil {
		m.agents = make(map[string][]*AgentResult)
	}
	m.artifacts = snap.Artifacts
	if m.artifacts == nil {
		m.artifacts = types.Data{}
	}
	m.messages = snap.Messages
	return nil
}

// Snapshots lists the saved snapshot keys of this project, oldest
// first.
func (m *ContextManager) Snapshots(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, errors.BadRequestf("no store configured")
	}
	keys := make([]string, 0)
	err := m.store.List(ctx, m.prefix(), func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear resets the context to empty, keeping the project name.
func (m *ContextManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = make(map[string][]*AgentResult)
	m.artifacts = types.Data{}
	m.messages = nil
}

type snapshot struct {
	ProjectName string                    `json:"project_name"`
	Agents      map[string][]*AgentResult `json:"agents"`
	Artifacts   types.Data                `json:"artifacts"`
	Messages    []*Message                `json:"messages"`
}

func (m *ContextManager) serialize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return utils.Serialize(&snapshot{
		ProjectName: m.projectName,
		Agents:      m.agents,
		Artifacts:   m.artifacts,
		Messages:    m.messages,
	})
}

func (m *ContextManager) prefix() string {
	return contextPrefix + "/" + m.projectName
}
