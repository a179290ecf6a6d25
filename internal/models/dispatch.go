package models

// TranscribeRequest is the body of an on-demand transcription request.
type TranscribeRequest struct {
	S3ObjectKeys []string `json:"s3ObjectKeys"`
	LanguageCode string   `json:"languageCode,omitempty"`
}

// JobResult describes one transcription submission.
type JobResult struct {
	JobID string `json:"jobId"`
	S3URI string `json:"s3Uri"`
	Error string `json:"error,omitempty"`
}

// DispatchResult partitions a batch into started and failed jobs, each in
// input order.
type DispatchResult struct {
	StartedJobs []JobResult `json:"startedJobs"`
	JobErrors   []JobResult `json:"jobErrors"`
}
