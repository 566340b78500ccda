package recorder

import (
	"context"
)

// CaptureDevice abstracts the platform audio recorder. Implementations
// are expected to buffer amplitude samples between DrainMetering
// calls.
type CaptureDevice interface {
	// Begin starts capturing audio.
	Begin(ctx context.Context) error
	// Pause suspends capture without discarding buffered audio.
	Pause() error
	// Resume continues a paused capture.
	Resume() error
	// End finalizes the capture and returns the asset URI.
	End() (string, error)
	// Discard drops the captured asset.
	Discard() error
	// DrainMetering returns amplitude samples accumulated since the
	// previous call.
	DrainMetering() []float64
}

// Result is handed to the caller on stop, for upload.
type Result struct {
	URI      string
	Duration float64
	Metering []float64
}
