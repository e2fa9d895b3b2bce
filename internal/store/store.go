package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflow definitions
	SaveDefinition(ctx context.Context, def *StoredDefinition) error
	GetDefinition(ctx context.Context, name string) (*StoredDefinition, error)
	ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*StoredDefinition, error)
	DeleteDefinition(ctx context.Context, name string) error
	TouchDefinition(ctx context.Context, name string) error

	// Scheduled jobs
	CreateScheduledJob(ctx context.Context, job *ScheduledJob) error
	GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error)
	UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error
	ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error)
	DeleteScheduledJob(ctx context.Context, id string) error

	// Run archive (append-only)
	ArchiveRun(ctx context.Context, run *ArchivedRun) error
	GetRun(ctx context.Context, runID string) (*ArchivedRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*ArchivedRun, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
