package store

// Status records what kind of work drove the most recent state write.
//
// A Status is not a reentrant lock.  Every write inspects the current
// Status and then unconditionally resets it to Idle, so the value
// only ever describes the immediately preceding write.
type Status int

const (
	// Idle means no dispatched action or committed mutation was
	// in progress.
	Idle Status = iota

	// InAction means a dispatched action was in progress.
	InAction

	// InMutation means a committed mutation (or Init) was in
	// progress.
	InMutation
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case InAction:
		return "action"
	case InMutation:
		return "mutation"
	default:
		return "unknown"
	}
}
