package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Action string `json:"action"`
	Peer   string `json:"peer,omitempty"`
	Order  string `json:"order,omitempty"`

	// Detail is action specific: the target status, the item op, the
	// advanced duration or the placed total.
	Detail string `json:"detail,omitempty"`

	// Outcome is "ok" or the error code returned by the engine.
	Outcome string `json:"outcome"`
}

// OrderState is the comparable summary of one order held by a peer.
type OrderState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  string `json:"total"`
	Items  int    `json:"items"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds each peer's orders after the last step, sorted by id.
	State map[string][]OrderState `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]OrderState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it from 1.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
