package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/agentflow/internal/agents"
	"github.com/rendis/agentflow/internal/expressions"
	"github.com/rendis/agentflow/internal/logging"
	"github.com/rendis/agentflow/internal/streaming"
	"github.com/rendis/agentflow/pkg/schema"
)

// parallelBatchName labels ad-hoc parallel batches in records and events,
// which have no registered workflow behind them.
const parallelBatchName = "parallel"

// Config carries the orchestrator's construction parameters.
type Config struct {
	// Concurrency bounds the parallel batch worker pool. Defaults to 8.
	Concurrency int
	// Hub receives run and task lifecycle events. Optional.
	Hub streaming.EventHub
	// Logger for structured run logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator is the facade over the workflow engine: it owns the agent
// and workflow registries, runs workflows sequentially or tasks in
// parallel, and keeps the execution ledger.
type Orchestrator struct {
	workflows *WorkflowRegistry
	agents    *agents.Registry
	runner    *Runner
	parallel  *ParallelRunner
	pool      *WorkerPool
	ledger    *Ledger
	hub       streaming.EventHub
	logger    *slog.Logger
}

// NewOrchestrator wires an Orchestrator from the given config.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	agentReg := agents.NewRegistry()
	resolver := expressions.NewResolver()
	dispatcher := NewDispatcher(agentReg, resolver, cel, cfg.Logger)
	pool := NewWorkerPool(cfg.Concurrency)

	return &Orchestrator{
		workflows: NewWorkflowRegistry(),
		agents:    agentReg,
		runner:    NewRunner(dispatcher, cfg.Hub, cfg.Logger),
		parallel:  NewParallelRunner(dispatcher, pool, cfg.Hub, cfg.Logger),
		pool:      pool,
		ledger:    NewLedger(),
		hub:       cfg.Hub,
		logger:    cfg.Logger,
	}, nil
}

// RegisterAgent adds (or replaces) an agent.
func (o *Orchestrator) RegisterAgent(agent agents.Agent) error {
	if err := o.agents.Register(agent); err != nil {
		return err
	}
	o.logger.Info("agent registered", "agent", agent.Name())
	return nil
}

// RegisterWorkflow validates and stores a workflow definition under name.
func (o *Orchestrator) RegisterWorkflow(name string, def *schema.WorkflowDefinition) error {
	if err := o.workflows.Register(name, def); err != nil {
		return err
	}
	o.logger.Info("workflow registered", "workflow", name, "tasks", len(def.Tasks))
	return nil
}

// RemoveWorkflow deletes a workflow definition.
func (o *Orchestrator) RemoveWorkflow(name string) {
	o.workflows.Remove(name)
}

// GetWorkflow retrieves a registered definition.
func (o *Orchestrator) GetWorkflow(name string) (*schema.WorkflowDefinition, error) {
	return o.workflows.Get(name)
}

// ListWorkflows returns the registered workflow names, sorted.
func (o *Orchestrator) ListWorkflows() []string {
	return o.workflows.Names()
}

// ListAgents returns info for the registered agents, sorted by name.
func (o *Orchestrator) ListAgents() []agents.AgentInfo {
	return o.agents.List()
}

// ExecuteWorkflow runs a registered workflow against input and returns its
// execution record. Failures are reported in-band: an unknown workflow or
// an orchestration fault yields a record with status "failed" and the
// error message, never a nil record. A run that halted on a task failure
// still reports status "completed"; the failure is visible in Results.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, name string, input any) (*schema.ExecutionRecord, error) {
	runID := uuid.NewString()
	ctx = logging.WithWorkflow(ctx, name)
	ctx = logging.WithRunID(ctx, runID)

	def, err := o.workflows.Get(name)
	if err != nil {
		o.logger.WarnContext(ctx, "workflow not found")
		rec := &schema.ExecutionRecord{
			RunID:       runID,
			Workflow:    name,
			Status:      schema.RunStatusFailed,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
		o.ledger.Record(rec)
		publish(ctx, o.hub, runEvent(ctx, schema.EventRunFailed, rec.Error))
		return rec, nil
	}

	o.logger.InfoContext(ctx, "run started", "tasks", len(def.Tasks))
	publish(ctx, o.hub, runEvent(ctx, schema.EventRunStarted, nil))

	start := time.Now()
	results, output, runErr := o.runner.Run(ctx, def, input)
	elapsed := time.Since(start)

	rec := &schema.ExecutionRecord{
		RunID:         runID,
		Workflow:      name,
		Status:        schema.RunStatusCompleted,
		Results:       results,
		Output:        output,
		ExecutionTime: elapsed,
		CompletedAt:   time.Now().UTC(),
	}
	if runErr != nil {
		rec.Status = schema.RunStatusFailed
		rec.Error = runErr.Error()
		rec.Output = nil
	}

	o.ledger.Record(rec)
	if runErr != nil {
		o.logger.WarnContext(ctx, "run failed", "error", runErr, "duration", elapsed)
		publish(ctx, o.hub, runEvent(ctx, schema.EventRunFailed, rec.Error))
	} else {
		o.logger.InfoContext(ctx, "run completed", "duration", elapsed)
		publish(ctx, o.hub, runEvent(ctx, schema.EventRunCompleted, nil))
	}
	return rec, nil
}

// ExecuteParallel runs an ad-hoc batch of independent tasks concurrently
// over a snapshot of a context seeded with input. Task faults are folded
// into failed results, so the batch record always reports "completed".
func (o *Orchestrator) ExecuteParallel(ctx context.Context, tasks []schema.TaskSpec, input any) (*schema.ExecutionRecord, error) {
	runID := uuid.NewString()
	ctx = logging.WithWorkflow(ctx, parallelBatchName)
	ctx = logging.WithRunID(ctx, runID)

	o.logger.InfoContext(ctx, "parallel batch started", "tasks", len(tasks))
	publish(ctx, o.hub, runEvent(ctx, schema.EventParallelStarted, nil))

	snapshot := expressions.NewExecutionContext(input).Snapshot()

	start := time.Now()
	results := o.parallel.Batch(ctx, tasks, snapshot)
	elapsed := time.Since(start)

	output := make(map[string]any, len(results))
	for id, exec := range results {
		output[id] = exec.Result
	}

	rec := &schema.ExecutionRecord{
		RunID:         runID,
		Workflow:      parallelBatchName,
		Status:        schema.RunStatusCompleted,
		Results:       results,
		Output:        output,
		ExecutionTime: elapsed,
		CompletedAt:   time.Now().UTC(),
	}

	o.ledger.Record(rec)
	o.logger.InfoContext(ctx, "parallel batch completed", "duration", elapsed)
	publish(ctx, o.hub, runEvent(ctx, schema.EventParallelCompleted, nil))
	return rec, nil
}

// Stats aggregates ledger statistics with registry sizes.
type Stats struct {
	schema.LedgerStats
	Workflows int `json:"registered_workflows"`
	Agents    int `json:"registered_agents"`
}

// Statistics summarizes the full run history and current registry sizes.
func (o *Orchestrator) Statistics() Stats {
	return Stats{
		LedgerStats: o.ledger.Statistics(),
		Workflows:   o.workflows.Count(),
		Agents:      o.agents.Count(),
	}
}

// History returns up to limit ledger entries, newest first. A non-positive
// limit returns everything.
func (o *Orchestrator) History(limit int) []schema.LedgerEntry {
	return o.ledger.Recent(limit)
}

// Close shuts down the parallel worker pool, waiting for in-flight tasks.
func (o *Orchestrator) Close() {
	o.pool.Shutdown()
}
