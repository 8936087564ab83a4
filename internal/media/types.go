package media

import "context"

// StreamDescriptor describes one subtitle stream inside a video container.
// Index is the absolute stream index within the container and is unique
// there. Preview is derived lazily and may be empty.
type StreamDescriptor struct {
	Index    int
	Codec    string
	Language string
	Title    string
	Preview  string
}

// Prober lists and extracts subtitle streams from a video container.
type Prober interface {
	ListStreams(path string) ([]StreamDescriptor, error)
	ExtractStream(path string, streamIndex int) (string, error)
}

// Chooser records the operator's pick among candidate streams and returns
// its position in the candidate slice. Pluggable so the selection algorithm
// is testable without a terminal. Implementations must honor context
// cancellation while waiting for input.
type Chooser interface {
	Choose(ctx context.Context, candidates []StreamDescriptor) (int, error)
}
