package remote

import (
	"context"
	"time"
)

// Sample is one value returned by a remote endpoint.
type Sample struct {
	Value any
	// At is zero when the endpoint did not timestamp the value.
	At time.Time
}

// ReadingClient fetches the latest sample served at path.
type ReadingClient interface {
	FetchSample(ctx context.Context, path string) (Sample, error)
}
