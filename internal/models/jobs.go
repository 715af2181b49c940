package models

import "time"

// JobStatus tracks an ingestion job through its lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobDispatched JobStatus = "DISPATCHED"
	JobRunning    JobStatus = "RUNNING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IngestionStats summarizes a completed ingestion run.
type IngestionStats struct {
	FilesProcessed int      `json:"files_processed"`
	FilesSkipped   int      `json:"files_skipped"`
	ClassesFound   int      `json:"classes_found"`
	FunctionsFound int      `json:"functions_found"`
	ImportsFound   int      `json:"imports_found"`
	TotalLines     int      `json:"total_lines"`
	Errors         []string `json:"errors,omitempty"`
}

// IncrementalStats summarizes an incremental graph update.
type IncrementalStats struct {
	FilesAdded           int      `json:"files_added"`
	FilesModified        int      `json:"files_modified"`
	FilesDeleted         int      `json:"files_deleted"`
	FilesRenamed         int      `json:"files_renamed"`
	DependentsReparsed   int      `json:"dependents_reparsed"`
	RelationshipsRemoved int      `json:"relationships_removed"`
	Errors               []string `json:"errors,omitempty"`
}

// IngestionJob is the tracker record for one queued unit of work.
type IngestionJob struct {
	JobID         string          `json:"job_id" db:"job_id"`
	Owner         string          `json:"owner" db:"owner"`
	RepoName      string          `json:"repo_name" db:"repo_name"`
	Branch        string          `json:"branch,omitempty" db:"branch"`
	ClearExisting bool            `json:"clear_existing" db:"clear_existing"`
	Status        JobStatus       `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Stats         *IngestionStats `json:"stats,omitempty" db:"-"`
	ErrorMessage  string          `json:"error_message,omitempty" db:"error_message"`
}

// Repo returns the "owner/name" identifier the graph is keyed by.
func (j *IngestionJob) Repo() string {
	return j.Owner + "/" + j.RepoName
}
