package send

// EventKind classifies transfer events. Progress events are best-effort and
// may be dropped when the consumer lags; every file produces exactly one
// terminal event (Completed, Failed, Cancelled or Rejected).
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventFailed
	EventCancelled
	EventRejected
)

func (k EventKind) Terminal() bool {
	return k != EventProgress
}

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TransferEvent reports the progress or outcome of a single file within a
// session.
type TransferEvent struct {
	Kind     EventKind
	FileId   string
	Filename string
	Bytes    int64 // cumulative bytes transferred
	Total    int64
	Err      error // set for Failed events
}
