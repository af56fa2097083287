package dai

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Esclender/dai-assistant/agent"
	"github.com/Esclender/dai-assistant/knowledge"
	"github.com/Esclender/dai-assistant/llm"
	"github.com/Esclender/dai-assistant/output"
	"github.com/Esclender/dai-assistant/recovery"
	"github.com/Esclender/dai-assistant/runtime"
	"github.com/Esclender/dai-assistant/store"
	"github.com/Esclender/dai-assistant/store/mem"
	"github.com/Esclender/dai-assistant/store/postgres"
	"github.com/Esclender/dai-assistant/types"
)

/**
 * PipelineStep declares one agent execution within a pipeline. The
 * step's task is registered under the agent's name, so later steps
 * list that name in DependsOn and receive the step's parsed output
 * under "<name>_result".
 */
type PipelineStep struct {
	// name the agent resolves under: explicit registrations first,
	// then the configs directory, then the builtin templates.
	AgentName string
	DependsOn []string
	// declared inputs; on key collisions they win over synthesized
	// dependency results and knowledge context entries.
	Inputs types.Data
	/**
	 * default: false
	 * a degraded step absorbs a recoverable failure: its result becomes
	 * the handler's fallback value instead of failing the pipeline.
	 * User interruptions are never absorbed.
	 */
	AllowDegraded bool
	// when set, a successful result is also written below the output
	// directory as indented JSON.
	ArtifactPath string
}

/**
 * Assistant wires the pieces together: the provider connector, the
 * agent engine, the shared knowledge context, persistence, recovery
 * and the artifact generator. Pipelines run as task graphs whose
 * operations execute agents; scheduling stays inside the graph
 * executor while retry and fallback policy live in the operations.
 */
type Assistant struct {
	options *types.AssistantOptions

	store     store.Store
	connector *llm.Connector
	engine    *agent.Engine
	library   *agent.Library
	knowledge *knowledge.ContextManager
	handler   *recovery.Handler
	generator *output.Generator

	mu      sync.Mutex
	agents  map[string]*agent.Definition
	history []*types.ExecutionRecord
}

// New creates an assistant with the given options
func New(opts ...types.AssistantOption) (*Assistant, error) {
	options := types.NewAssistantOptions()
	for _, opt := range opts {
		opt(options)
	}

	s, err := newStore(options)
	if err != nil {
		return nil, errors.Trace(err)
	}

	connector := llm.NewConnector(options)
	return &Assistant{
		options:   options,
		store:     s,
		connector: connector,
		engine:    agent.NewEngine(connector, recovery.NewRetryer(options.Retry)),
		library:   agent.NewLibrary(options.ConfigsDir),
		knowledge: knowledge.NewContextManager(options.ProjectName, s),
		handler:   recovery.NewHandler(),
		generator: output.NewGenerator(options.OutputDir),
		agents:    make(map[string]*agent.Definition),
	}, nil
}

func newStore(options *types.AssistantOptions) (store.Store, error) {
	var s store.Store
	var err error

	// PostgresConfig takes precedence over MemStore
	if options.PostgresConfig != nil {
		s, err = postgres.NewPostgresStore(postgres.FromOptions(options.PostgresConfig))
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
	} else if options.MemStore {
		s = mem.NewMemStore()
	} else {
		// Default to mem store if not specified
		s = mem.NewMemStore()
	}
	return s, nil
}

// RegisterAgent makes the definition available to pipeline steps under
// its name, replacing any previous registration.
func (a *Assistant) RegisterAgent(def *agent.Definition) error {
	if def == nil {
		return errors.BadRequestf("agent definition is nil")
	}
	if err := def.Validate(); err != nil {
		return errors.Trace(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.agents[def.Name] = def
	return nil
}

// SaveAgent persists the definition to the configs directory and
// registers it, returning the path written.
func (a *Assistant) SaveAgent(def *agent.Definition) (string, error) {
	path, err := a.library.Save(def)
	if err != nil {
		return "", errors.Trace(err)
	}
	if err := a.RegisterAgent(def); err != nil {
		return "", errors.Trace(err)
	}
	return path, nil
}

// Agent resolves a name against explicit registrations, then the
// configs directory, then the builtin templates.
func (a *Assistant) Agent(name string) (*agent.Definition, error) {
	if name == "" {
		return nil, errors.BadRequestf("agent name is empty")
	}

	a.mu.Lock()
	def, exists := a.agents[name]
	a.mu.Unlock()
	if exists {
		return def, nil
	}

	def, err := a.library.Load(name)
	if err == nil {
		return def, nil
	}
	if !errors.IsNotFound(err) && !errors.IsBadRequest(err) {
		return nil, errors.Trace(err)
	}

	def, err = agent.Template(name)
	if err != nil {
		return nil, errors.NotFoundf("agent %s", name)
	}
	return def, nil
}

/**
 * RunPipeline executes the steps as one dependency graph run. Every
 * agent resolves before anything starts, so a bad pipeline fails
 * without history. Each operation enriches its assembled inputs with
 * the knowledge context, executes its agent, and records an execution
 * entry plus the result in the knowledge context.
 *
 * On success the returned data maps each agent's name to its parsed
 * output.
 */
func (a *Assistant) RunPipeline(ctx context.Context, steps []*PipelineStep) (types.Data, error) {
	graph, err := a.buildGraph(steps)
	if err != nil {
		return nil, errors.Trace(err)
	}

	executor := runtime.NewExecutor(&types.ExecuteOptions{
		MaxConcurrent: a.options.MaxConcurrent,
	})
	results, err := executor.Run(ctx, graph)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return results, nil
}

// DescribePipeline renders the steps' dependency tree without
// resolving or running anything.
func (a *Assistant) DescribePipeline(steps []*PipelineStep) (string, error) {
	graph, err := structuralGraph(steps)
	if err != nil {
		return "", errors.Trace(err)
	}
	return graph.Describe(), nil
}

// RenderPipelineDOT renders the steps as a Graphviz document.
func (a *Assistant) RenderPipelineDOT(steps []*PipelineStep) (string, error) {
	graph, err := structuralGraph(steps)
	if err != nil {
		return "", errors.Trace(err)
	}
	return graph.RenderDOT(), nil
}

// structuralGraph builds a graph carrying only the steps' shape, for
// the diagnostic renderings.
func structuralGraph(steps []*PipelineStep) (*runtime.TaskGraph, error) {
	graph := runtime.NewTaskGraph()
	for _, step := range steps {
		if step == nil {
			return nil, errors.BadRequestf("pipeline step is nil")
		}
		err := graph.AddTask(step.AgentName, noopOperation,
			runtime.WithDependsOn(step.DependsOn...))
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return graph, nil
}

func (a *Assistant) buildGraph(steps []*PipelineStep) (*runtime.TaskGraph, error) {
	if len(steps) == 0 {
		return nil, errors.BadRequestf("pipeline has no steps")
	}

	graph := runtime.NewTaskGraph()
	for _, step := range steps {
		if step == nil {
			return nil, errors.BadRequestf("pipeline step is nil")
		}
		def, err := a.Agent(step.AgentName)
		if err != nil {
			return nil, errors.Trace(err)
		}
		err = graph.AddTask(step.AgentName, a.stepOperation(def, step),
			runtime.WithDependsOn(step.DependsOn...),
			runtime.WithInputs(step.Inputs))
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return graph, nil
}

// stepOperation wraps one agent execution with the step's recovery
// policy. The closure copies the step fields it needs so later
// mutation of the slice cannot change a built graph.
func (a *Assistant) stepOperation(def *agent.Definition, step *PipelineStep) types.TaskHandler {
	allowDegraded := step.AllowDegraded
	artifactPath := step.ArtifactPath

	return func(ctx types.Context, args []any, inputs types.Data) (any, error) {
		enriched := inputs.Clone()
		enriched.Merge(a.knowledge.AgentContext(def.Name))

		started := time.Now()
		result, err := a.engine.Execute(ctx, def, enriched)
		if err != nil {
			a.record(ctx, def.Name, started, types.Failed, err)
			if allowDegraded && types.KindOf(err) != types.KindUserInterrupt {
				log.Warnf("agent %s degraded: %v", def.Name, err)
				fallback := a.handler.Fallback(err)
				a.knowledge.AddAgentResult(def.Name, fallback)
				return fallback, nil
			}
			return nil, errors.Trace(err)
		}

		a.record(ctx, def.Name, started, types.Completed, nil)
		a.knowledge.AddAgentResult(def.Name, result)

		if artifactPath != "" {
			// the result is already produced and recorded; a failed
			// artifact write must not fail the step
			if _, werr := a.generator.WriteJSON(artifactPath, result, true); werr != nil {
				log.Errorf("agent %s: writing artifact %s: %v", def.Name, artifactPath, werr)
			}
		}
		return result, nil
	}
}

func (a *Assistant) record(ctx types.Context, agentName string, started time.Time, status types.StatusType, cause error) {
	record := &types.ExecutionRecord{
		RunID:     ctx.GetRunID(),
		TaskID:    agentName,
		AgentName: agentName,
		StartTime: started,
		EndTime:   time.Now(),
		Status:    status,
	}
	if cause != nil {
		record.Error = cause.Error()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, record)
}

// History returns a copy of the execution records, oldest first.
func (a *Assistant) History() []*types.ExecutionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*types.ExecutionRecord(nil), a.history...)
}

// Knowledge exposes the shared context manager.
func (a *Assistant) Knowledge() *knowledge.ContextManager {
	return a.knowledge
}

// Handler exposes the error handler so callers can install their own
// reactions and fallback strategies.
func (a *Assistant) Handler() *recovery.Handler {
	return a.handler
}

// Generator exposes the artifact generator.
func (a *Assistant) Generator() *output.Generator {
	return a.generator
}

// Connector exposes the provider connector for custom registrations.
func (a *Assistant) Connector() *llm.Connector {
	return a.connector
}

// UsageSnapshot reports the token usage accumulated across providers.
func (a *Assistant) UsageSnapshot() types.Data {
	return a.connector.Usage().Snapshot()
}

func noopOperation(ctx types.Context, args []any, inputs types.Data) (any, error) {
	return nil, nil
}
