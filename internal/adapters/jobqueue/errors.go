package jobqueue

import "errors"

// ErrQueueClosed is returned when enqueuing to a closed queue.
var ErrQueueClosed = errors.New("job queue closed")
