package visit

import "github.com/orms/orms/internal/domain/reference"

// InitialStatus is the status every new visit starts in.
const InitialStatus = reference.VisitScheduled

// transitions lists the legal targets of each status. Anything absent is
// rejected, including a move to the current status.
var transitions = map[reference.VisitStatus][]reference.VisitStatus{
	reference.VisitScheduled:  {reference.VisitCheckedIn, reference.VisitCancelled},
	reference.VisitCheckedIn:  {reference.VisitInProgress, reference.VisitCancelled},
	reference.VisitInProgress: {reference.VisitCompleted, reference.VisitCancelled},
	reference.VisitCompleted:  nil,
	reference.VisitCancelled:  nil,
}

// CanTransition reports whether a visit in from may move to to.
func CanTransition(from, to reference.VisitStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s reference.VisitStatus) []reference.VisitStatus {
	out := make([]reference.VisitStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// durationAllowed reports whether duration_minutes may be recorded in s.
func durationAllowed(s reference.VisitStatus) bool {
	return s == reference.VisitInProgress || s == reference.VisitCompleted
}

// Deletable reports whether a visit in s may be removed. Bills raised
// against a visit follow the same rule.
func Deletable(s reference.VisitStatus) bool {
	return s == reference.VisitScheduled || s == reference.VisitCancelled
}
