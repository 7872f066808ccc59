package hook

// State is the lifecycle position of a DataSource.
type State int32

const (
	NotStarted State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
