package api

type EventKind string

const (
	EventCreated EventKind = "Created"
	EventRemoved EventKind = "Removed"
)

// UploadEvent is a normalized storage-change record. Key is already decoded.
type UploadEvent struct {
	Bucket string
	Key    string
	Kind   EventKind
}

func (e UploadEvent) Locator() string {
	return "s3://" + e.Bucket + "/" + e.Key
}
