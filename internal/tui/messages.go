package tui

// NodePhaseMsg moves a node row to a new phase.
type NodePhaseMsg struct {
	Node  string
	Phase string
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}

type downloadStartMsg struct {
	label string
	total int64
}

type downloadAdvanceMsg struct {
	label string
	done  int64
}

type downloadFinishMsg struct {
	label string
	done  int64
	err   error
}
