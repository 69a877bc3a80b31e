package queue

import "errors"

// ErrCapacityExceeded indicates a Put was rejected because the queue already
// holds its configured maximum of ready messages. Callers may retry later.
var ErrCapacityExceeded = errors.New("queue capacity exceeded")

// ErrInvalidNamespace indicates a queue name that could escape identifier
// quoting in SQL. Namespace names are rejected before any store access.
var ErrInvalidNamespace = errors.New("invalid queue namespace")

// ErrInvalidOptions indicates Store construction arguments that are missing
// or conflicting.
var ErrInvalidOptions = errors.New("invalid store options")
