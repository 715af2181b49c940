package models

// Wire payloads carried by the task queue between the API and worker processes.
// Re-delivering the same payload must be safe: workers short-circuit on jobs
// already in a terminal state.

// IngestionTaskPayload requests a full repository ingest.
type IngestionTaskPayload struct {
	JobID         string `json:"job_id"`
	Owner         string `json:"owner"`
	RepoName      string `json:"repo_name"`
	Branch        string `json:"branch,omitempty"`
	ClearExisting bool   `json:"clear_existing"`
}

// IncrementalPRPayload requests a graph update for a merged pull request.
type IncrementalPRPayload struct {
	JobID    string `json:"job_id"`
	Owner    string `json:"owner"`
	RepoName string `json:"repo_name"`
	PRNumber int    `json:"pr_number"`
}

// IncrementalPushPayload requests a graph update for a direct push.
type IncrementalPushPayload struct {
	JobID     string `json:"job_id"`
	Owner     string `json:"owner"`
	RepoName  string `json:"repo_name"`
	BeforeSHA string `json:"before_sha"`
	AfterSHA  string `json:"after_sha"`
}

// ChangeStatus enumerates the states a file can be in within a diff.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeRemoved  ChangeStatus = "removed"
	ChangeRenamed  ChangeStatus = "renamed"
)

// ChangeRecord is one changed file as reported by the repository host.
type ChangeRecord struct {
	Filename         string       `json:"filename"`
	Status           ChangeStatus `json:"status"`
	PreviousFilename string       `json:"previous_filename,omitempty"`
	Additions        int          `json:"additions"`
	Deletions        int          `json:"deletions"`
}

// Hunk is a contiguous changed line range within a single file.
type Hunk struct {
	FilePath  string `json:"file_path"` // repo-relative
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}
