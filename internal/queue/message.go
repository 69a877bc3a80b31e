package queue

import "strings"

// Status represents the lifecycle of a message. The integer values are part
// of the on-disk format and must not be reordered.
type Status int

const (
	StatusReady  Status = 0
	StatusLocked Status = 1
	StatusDone   Status = 2
	StatusFailed Status = 3
)

var allStatuses = []Status{StatusReady, StatusLocked, StatusDone, StatusFailed}

// String returns the lowercase name used in CLI and log output.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusLocked:
		return "locked"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether a message in this status has finished processing.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a status name into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ready":
		return StatusReady, true
	case "locked":
		return StatusLocked, true
	case "done":
		return StatusDone, true
	case "failed":
		return StatusFailed, true
	default:
		return 0, false
	}
}

// Message is one unit of work persisted in SQLite.
//
// Timestamps are integer nanoseconds since the Unix epoch. LockTime and
// DoneTime are zero until the message has been claimed or completed.
type Message struct {
	// Data is the opaque payload, immutable after creation.
	Data string

	// ID is unique for the lifetime of the store and doubles as the claim
	// ordering key; identifiers sort in approximate insertion order.
	ID string

	Status   Status
	InTime   int64
	LockTime int64
	DoneTime int64
}

// Locked reports whether the message currently holds a claim.
func (m *Message) Locked() bool {
	return m.Status == StatusLocked
}
