package vehicle

// Result is the outcome of one Execute call.
//
// Success results carry the fields the action modified in Changes (empty
// when the action left the state as it was). Failure results carry the
// reason in Error and leave the state untouched.
type Result struct {
	Action  string         `json:"action"`
	Success bool           `json:"success"`
	Changes map[string]any `json:"changes"`
	Error   string         `json:"error,omitempty"`

	// Err is the underlying error for failures, suitable for errors.Is.
	Err error `json:"-"`
}

func succeeded(action string, changes map[string]any) Result {
	if changes == nil {
		changes = map[string]any{}
	}
	return Result{Action: action, Success: true, Changes: changes}
}

func failed(action string, err error) Result {
	return Result{
		Action:  action,
		Success: false,
		Changes: map[string]any{},
		Error:   err.Error(),
		Err:     err,
	}
}

// Changed reports whether the action modified at least one field.
func (r Result) Changed() bool {
	return r.Success && len(r.Changes) > 0
}
