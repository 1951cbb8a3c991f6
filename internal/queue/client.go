package queue

import "context"

// Client delivers analysis jobs to a queue backend. Implementations must be
// safe for concurrent use; a failed Send leaves the job to the caller.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
