package engine

import (
	"context"

	"github.com/rendis/agentflow/internal/logging"
	"github.com/rendis/agentflow/internal/streaming"
	"github.com/rendis/agentflow/pkg/schema"
)

// publish sends an event to the hub, tolerating a nil hub and delivery
// errors. Streaming is best-effort and never affects run outcomes.
func publish(ctx context.Context, hub streaming.EventHub, event streaming.StreamEvent) {
	if hub == nil {
		return
	}
	_ = hub.Publish(ctx, event)
}

// runEvent builds a run-level event, drawing correlation fields from ctx.
func runEvent(ctx context.Context, eventType string, payload any) streaming.StreamEvent {
	return streaming.StreamEvent{
		Workflow:  logging.Workflow(ctx),
		RunID:     logging.RunID(ctx),
		EventType: eventType,
		Payload:   payload,
	}
}

// taskEvent builds a task-level event, drawing correlation fields from ctx.
func taskEvent(ctx context.Context, task schema.TaskSpec, eventType string, payload any) streaming.StreamEvent {
	return streaming.StreamEvent{
		Workflow:  logging.Workflow(ctx),
		RunID:     logging.RunID(ctx),
		TaskID:    task.TaskID,
		Agent:     task.Agent,
		EventType: eventType,
		Payload:   payload,
	}
}

// taskEventType maps a task result status to its stream event type.
func taskEventType(result schema.TaskResult) string {
	switch schema.ResultStatus(result) {
	case schema.TaskStatusFailed:
		return schema.EventTaskFailed
	case schema.TaskStatusSkipped:
		return schema.EventTaskSkipped
	default:
		return schema.EventTaskCompleted
	}
}
