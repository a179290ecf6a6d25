package models

// StorageEvent is an S3-format bucket notification. MinIO and S3 (direct,
// via SNS raw delivery, or bridged onto Kafka) all emit this shape.
type StorageEvent struct {
	Records []StorageRecord `json:"Records"`
}

// StorageRecord is a single object write notification.
type StorageRecord struct {
	EventSource  string       `json:"eventSource"`
	EventName    string       `json:"eventName"`
	EventTime    string       `json:"eventTime,omitempty"`
	UserIdentity UserIdentity `json:"userIdentity"`
	S3           S3Entity     `json:"s3"`
}

// UserIdentity names the principal that performed the write.
type UserIdentity struct {
	PrincipalID string `json:"principalId"`
}

// S3Entity locates the written object.
type S3Entity struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

// S3Bucket is the bucket half of an S3Entity.
type S3Bucket struct {
	Name string `json:"name"`
}

// S3Object is the object half of an S3Entity. Key is URL-encoded on the wire.
type S3Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
}

// Record outcome events.
const (
	EventSkipped               = "SKIPPED_S3_EVENT"
	EventRejected              = "REJECTED_EVENT"
	EventIgnored               = "IGNORED_EVENT"
	EventTranscriptionDispatch = "TRANSCRIPTION_DISPATCHED"
	EventAnalysisCompleted     = "ANALYSIS_COMPLETED"
)

// RecordOutcome reports how the router handled one StorageRecord.
type RecordOutcome struct {
	Event     string            `json:"event"`
	Bucket    string            `json:"bucket,omitempty"`
	ObjectKey string            `json:"objectKey"`
	Stage     string            `json:"stage"`
	Message   string            `json:"message,omitempty"`
	Dispatch  *DispatchResult   `json:"dispatch,omitempty"`
	Analysis  *AnalysisResponse `json:"analysis,omitempty"`
}
