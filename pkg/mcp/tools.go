package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/robfig/cron/v3"

	"github.com/rendis/agentflow/internal/store"
	"github.com/rendis/agentflow/pkg/schema"
)

// handleRun executes a registered workflow and archives the run.
func (s *AgentflowServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}

	input := mcp.ParseStringMap(req, "input", nil)

	// Persisted definitions may carry an input schema to enforce.
	if s.store != nil && s.validator != nil {
		if stored, getErr := s.store.GetDefinition(ctx, workflow); getErr == nil && len(stored.InputSchema) > 0 {
			if valErr := s.validator.ValidateInput(input, stored.InputSchema); valErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("input validation failed: %v", valErr)), nil
			}
		}
	}

	var runInput any
	if input != nil {
		runInput = input
	}

	rec, runErr := s.orchestrator.ExecuteWorkflow(ctx, workflow, runInput)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow execution failed: %v", runErr)), nil
	}

	s.archiveRun(ctx, rec)

	return marshalResult(rec)
}

// archiveRun persists the execution record and bumps the definition's run
// counter. Best effort: archival failures are logged, not surfaced.
func (s *AgentflowServer) archiveRun(ctx context.Context, rec *schema.ExecutionRecord) {
	if s.store == nil || rec == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("failed to marshal execution record", "run_id", rec.RunID, "error", err)
		return
	}

	run := &store.ArchivedRun{
		RunID:       rec.RunID,
		Workflow:    rec.Workflow,
		Status:      rec.Status,
		Record:      data,
		DurationMs:  rec.ExecutionTime.Milliseconds(),
		CompletedAt: rec.CompletedAt,
	}
	if err := s.store.ArchiveRun(ctx, run); err != nil {
		s.logger.Error("failed to archive run", "run_id", rec.RunID, "error", err)
	}

	// Only persisted definitions have a run counter.
	if err := s.store.TouchDefinition(ctx, rec.Workflow); err != nil {
		s.logger.Debug("run counter not updated", "workflow", rec.Workflow, "error", err)
	}
}

// handleDefine validates and registers a workflow definition.
func (s *AgentflowServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}

	defRaw := mcp.ParseStringMap(req, "definition", nil)
	if defRaw == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	defJSON, marshalErr := json.Marshal(defRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", marshalErr)), nil
	}

	var def schema.WorkflowDefinition
	if unmarshalErr := json.Unmarshal(defJSON, &def); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", unmarshalErr)), nil
	}
	if def.Name == "" {
		def.Name = name
	}

	if s.validator != nil {
		if valErr := s.validator.ValidateDefinition(&def); valErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", valErr)), nil
		}
	}

	var inputSchema json.RawMessage
	if rawSchema := mcp.ParseStringMap(req, "input_schema", nil); rawSchema != nil {
		schemaJSON, schemaErr := json.Marshal(rawSchema)
		if schemaErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid input_schema: %v", schemaErr)), nil
		}
		if s.validator != nil {
			// Compile now so a broken schema fails at define time, not run time.
			if compileErr := s.validator.CompileSchema(schemaJSON); compileErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid input_schema: %v", compileErr)), nil
			}
		}
		inputSchema = schemaJSON
	}

	if regErr := s.orchestrator.RegisterWorkflow(name, &def); regErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register workflow: %v", regErr)), nil
	}

	persisted := false
	if s.store != nil && req.GetBool("persist", true) {
		now := time.Now().UTC()
		saveErr := s.store.SaveDefinition(ctx, &store.StoredDefinition{
			Name:        name,
			Definition:  def,
			InputSchema: inputSchema,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if saveErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("workflow registered but not persisted: %v", saveErr)), nil
		}
		persisted = true
	}

	return marshalResult(map[string]any{
		"name":      name,
		"tasks":     len(def.Tasks),
		"persisted": persisted,
	})
}

// handleAgents lists the registered agents with their capabilities.
func (s *AgentflowServer) handleAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"agents": s.orchestrator.ListAgents()})
}

// handleSchedule creates a cron-triggered scheduled job for a workflow.
func (s *AgentflowServer) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	cronExpr, err := req.RequireString("cron")
	if err != nil {
		return mcp.NewToolResultError("cron is required"), nil
	}

	if s.store == nil {
		return mcp.NewToolResultError("scheduling requires persistent storage"), nil
	}
	if _, getErr := s.orchestrator.GetWorkflow(workflow); getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown workflow: %s", workflow)), nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, parseErr := parser.Parse(cronExpr); parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", parseErr)), nil
	}

	var input json.RawMessage
	if rawInput := mcp.ParseStringMap(req, "input", nil); rawInput != nil {
		data, marshalErr := json.Marshal(rawInput)
		if marshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid input: %v", marshalErr)), nil
		}
		input = data
	}

	job := &store.ScheduledJob{
		ID:             uuid.NewString(),
		Workflow:       workflow,
		CronExpression: cronExpr,
		Input:          input,
		Enabled:        true,
		CreatedAt:      time.Now().UTC(),
	}
	if createErr := s.store.CreateScheduledJob(ctx, job); createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create scheduled job: %v", createErr)), nil
	}

	return marshalResult(job)
}

// handleQuery inspects workflows, history, runs, jobs, or statistics.
func (s *AgentflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "workflows":
		return s.queryWorkflows()
	case "history":
		return marshalResult(map[string]any{
			"history": s.orchestrator.History(extractInt(filter, "limit", 50)),
		})
	case "runs":
		return s.queryRuns(ctx, filter)
	case "jobs":
		return s.queryJobs(ctx, filter)
	case "stats":
		return marshalResult(s.orchestrator.Statistics())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *AgentflowServer) queryWorkflows() (*mcp.CallToolResult, error) {
	names := s.orchestrator.ListWorkflows()
	workflows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		def, err := s.orchestrator.GetWorkflow(name)
		if err != nil {
			continue // removed between List and Get
		}
		workflows = append(workflows, map[string]any{
			"name":        name,
			"description": def.Description,
			"tasks":       def.TaskIDs(),
			"category":    def.Category,
			"tags":        def.Tags,
		})
	}
	return marshalResult(map[string]any{"workflows": workflows})
}

func (s *AgentflowServer) queryRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run queries require persistent storage"), nil
	}

	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if workflow, ok := filter["workflow"].(string); ok {
		rf.Workflow = workflow
	}
	if status, ok := filter["status"].(string); ok {
		rf.Status = status
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, parseErr := time.Parse(time.RFC3339, since); parseErr == nil {
			rf.Since = &t
		}
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

func (s *AgentflowServer) queryJobs(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("job queries require persistent storage"), nil
	}

	jf := store.ScheduledJobFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if enabled, ok := filter["enabled"].(bool); ok {
		jf.Enabled = &enabled
	}

	jobs, err := s.store.ListScheduledJobs(ctx, jf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"jobs": jobs})
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
