package constants

// JobStatus is the canonical status for rows in document_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"    // in progress
	JobStatusExtracted JobStatus = "EXTRACTED"  // records extracted and stored
	JobStatusNoRecords JobStatus = "NO_RECORDS" // document read, no record marker found
	JobStatusFailed    JobStatus = "FAILED"     // terminal failure
	JobStatusSkipped   JobStatus = "SKIPPED"    // same content already extracted
)

// Succeeded reports whether the status ends a job without error.
func (s JobStatus) Succeeded() bool {
	return s == JobStatusExtracted || s == JobStatusNoRecords || s == JobStatusSkipped
}
