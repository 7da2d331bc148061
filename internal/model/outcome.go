package model

// Outcome is the terminal result of one pipeline run. It is either a Success
// or a Failure; no other implementations exist.
type Outcome interface {
	State() State
	outcome()
}

// Success carries the signed URLs of the persisted derivatives.
type Success struct {
	WatermarkURL string `json:"watermarkURL"`
	ThumbnailURL string `json:"thumbnailURL"`
}

// Failure carries the diagnostic written to the order's error field.
type Failure struct {
	Diagnostic string `json:"error"`
}

func (Success) State() State { return StateSuccess }
func (Failure) State() State { return StateError }

func (Success) outcome() {}
func (Failure) outcome() {}

// Stage names a step of the fulfillment pipeline. Used for logs and diagnostics.
type Stage string

const (
	StageReceived     Stage = "RECEIVED"
	StageAuthorized   Stage = "AUTHORIZED"
	StageMatted       Stage = "MATTED"
	StagePrivateSaved Stage = "PRIVATE_SAVED"
	StageDerived      Stage = "DERIVED"
	StagePersisted    Stage = "PERSISTED"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// ArtifactKind is the top-level storage tag of a derivative artifact.
type ArtifactKind string

const (
	KindWatermark ArtifactKind = "watermarks"
	KindThumbnail ArtifactKind = "thumbnails"
	KindPrivate   ArtifactKind = "privates"
)
