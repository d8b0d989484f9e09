package fsm

// RefreshRequest is the FSM input
type RefreshRequest struct {
	UserID string
}

// RefreshResponse is the FSM output (accumulated across transitions)
type RefreshResponse struct {
	// From LoadLines
	LineCount int

	// From RefreshSnapshots
	Refreshed int
	Failed    []string

	// From Complete
	ItemCount int

	Status string
}

// State names
const (
	StateLoadLines        = "load_lines"
	StateRefreshSnapshots = "refresh_snapshots"
	StateComplete         = "complete"
	StateFailed           = "failed"
)

// Response statuses
const (
	StatusLoaded    = "loaded"
	StatusRefreshed = "refreshed"
	StatusComplete  = "complete"
)
