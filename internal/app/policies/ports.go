package policies

import (
	"context"
	"io"
)

// Notifier delivers a rendered notification to a recipient. Delivery itself
// lives outside this service.
type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}

// ProofStorage keeps payment receipts and returns an opaque reference the
// booking stores verbatim.
type ProofStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}
