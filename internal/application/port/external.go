package port

import "context"

// LabelScore is one label with the model's score for it
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// IntelligenceService defines the model/embedding collaborator. A failed call
// returns an error and means unavailability; low confidence is expressed
// through scores, never through an error.
type IntelligenceService interface {
	// Classify scores text against the given label set and returns one score
	// per label. ModelVersion identifies the scoring model for drift
	// detection downstream.
	Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error)

	// Embed returns a sentence embedding for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelVersion returns the identifier persisted as ai_model_version
	ModelVersion() string
}

// QueueStats is a read-only snapshot of queue depths for the operational
// surface
type QueueStats struct {
	Ready      int `json:"ready"`
	Retrying   int `json:"retrying"`
	DeadLetter int `json:"dead_letter"`
}

// ReportQueue is the shared FIFO work queue feeding the pipeline workers
type ReportQueue interface {
	// Publish enqueues a report id for processing. Enqueues are never
	// rejected for depth; backpressure is a health signal only.
	Publish(ctx context.Context, reportID int64, force bool) error

	// Stats returns current queue depths
	Stats(ctx context.Context) (*QueueStats, error)
}

// Notification is a fire-and-forget message emitted on key lifecycle
// transitions
type Notification struct {
	ReportID  int64  `json:"report_id"`
	Event     string `json:"event"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
	Actor     string `json:"actor"`
	Notes     string `json:"notes,omitempty"`
}

// NotificationDispatcher delivers notifications to interested consumers.
// Delivery failures must never roll back the lifecycle transition that
// triggered them.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *Notification) error
}

// GeoDistanceFunc returns the distance in meters between two (lat, lon)
// pairs. Injected so the duplicate finder stays independent of the distance
// implementation.
type GeoDistanceFunc func(lat1, lon1, lat2, lon2 float64) float64
