package engine

import "github.com/rendis/agentflow/pkg/schema"

// ReferenceWorkflows returns the starter workflow definitions the daemon
// registers at boot. They exercise the builtin agents only, so they run
// without any external collaborators.
func ReferenceWorkflows() map[string]*schema.WorkflowDefinition {
	return map[string]*schema.WorkflowDefinition{
		"research_pipeline":  researchPipeline(),
		"qa_with_validation": qaWithValidation(),
		"ticket_triage":      ticketTriage(),
	}
}

func researchPipeline() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Name:        "research_pipeline",
		Description: "Multi-step research brief with a composed report",
		Category:    "starter",
		Tags:        []string{"starter", "research"},
		OutputVar:   "report",
		Tasks: []schema.TaskSpec{
			{
				TaskID:      "gather",
				Agent:       "echo",
				Input:       map[string]any{"topic": "${input.topic}", "notes": "${input.notes}"},
				Description: "Collect the research brief",
			},
			{
				TaskID:      "headline",
				Agent:       "transform",
				Input:       map[string]any{"expression": "upper(topic)", "topic": "${input.topic}"},
				Description: "Derive the report headline",
			},
			{
				TaskID: "report",
				Agent:  "compose",
				Input: map[string]any{
					"parts": []any{
						"${headline.result}",
						"Topic: ${input.topic}",
						"Notes: ${gather.echo.notes}",
					},
					"separator": "\n\n",
				},
				Description: "Assemble the final report",
			},
		},
	}
}

func qaWithValidation() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Name:        "qa_with_validation",
		Description: "Question answering with an automatic acceptance check",
		Category:    "starter",
		Tags:        []string{"starter", "qa"},
		OutputVar:   "validate",
		Tasks: []schema.TaskSpec{
			{
				TaskID:      "answer",
				Agent:       "echo",
				Input:       map[string]any{"question": "${input.question}"},
				Description: "Record the question for answering",
			},
			{
				TaskID:    "validate",
				Agent:     "transform",
				Condition: `tasks.answer.status == "completed"`,
				Input: map[string]any{
					"expression": `len(answer) > 0 ? "accepted" : "empty"`,
					"answer":     "${answer.echo.question}",
				},
				Description: "Accept or reject the recorded answer",
			},
		},
	}
}

func ticketTriage() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Name:        "ticket_triage",
		Description: "Ticket classification with conditional escalation",
		Category:    "starter",
		Tags:        []string{"starter", "support"},
		OutputVar:   "reply",
		Tasks: []schema.TaskSpec{
			{
				TaskID: "classify",
				Agent:  "extract",
				Input: map[string]any{
					"query": `.priority // "normal"`,
					"data": map[string]any{
						"priority": "${input.priority}",
						"subject":  "${input.subject}",
					},
				},
				Description: "Read the ticket priority",
			},
			{
				TaskID:      "escalate",
				Agent:       "echo",
				Condition:   `tasks.classify.result == "urgent"`,
				Input:       map[string]any{"alert": "escalation required for ${input.subject}"},
				Description: "Flag urgent tickets for escalation",
			},
			{
				TaskID: "reply",
				Agent:  "compose",
				Input: map[string]any{
					"parts": []any{
						"Ticket: ${input.subject}",
						"Priority: ${classify.result}",
						"We are on it.",
					},
				},
				Description: "Draft the acknowledgement reply",
			},
		},
	}
}
