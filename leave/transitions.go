/*
transitions.go - Closed transition table for request statuses

PURPOSE:
  Replaces string-typed status checks scattered across call sites with one
  explicit table. Any transition not in the table is a ConflictError by
  construction, which eliminates accidental invalid transitions such as
  deciding an already-decided request.

THE TABLE:
  pending  -> approved | rejected | cancelled
  approved -> cancelled            (late cancellation, restores used balance)
  rejected -> (none)
  cancelled-> (none)
*/
package leave

var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusRejected:  true,
		StatusCancelled: true,
	},
	StatusApproved: {
		StatusCancelled: true,
	},
	StatusRejected:  {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a permitted edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// CheckTransition returns a ConflictError identifying the current and
// requested state when the edge is not in the table.
func CheckTransition(requestID string, from, to Status) error {
	if !CanTransition(from, to) {
		return &ConflictError{RequestID: requestID, Current: from, Requested: to}
	}
	return nil
}
