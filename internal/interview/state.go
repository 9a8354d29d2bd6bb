package interview

// State is a session lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAwaitingAnswer
	StateGenerating
	StateEvaluating
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateGenerating:
		return "generating"
	case StateEvaluating:
		return "evaluating"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
