package domain

import "math"

var transitions = map[Status][]Status{
	StatusDraft:               {StatusUnderReview},
	StatusUnderReview:         {StatusApproved, StatusRejected, StatusNeedMoreInformation},
	StatusNeedMoreInformation: {StatusUnderReview, StatusRejected},
}

// CanTransitionTo reports whether from -> to is an edge of the workflow.
// Terminal states have no outgoing edges.
func CanTransitionTo(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the states reachable from s in one step.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanUserModifyVerification reports whether documents may be uploaded or
// removed while the request is in status s.
func CanUserModifyVerification(s Status) bool {
	return s == StatusDraft || s == StatusNeedMoreInformation
}

// ReviewerOnly reports whether entering s is a review decision.
func ReviewerOnly(s Status) bool {
	return s == StatusApproved || s == StatusRejected || s == StatusNeedMoreInformation
}

// Progress is a 0..100 completion indicator. Uploaded required documents are
// worth 60, leaving Draft 20 and approval the last 20.
func Progress(v VerificationRequest) int {
	docShare := 1.0
	if total := len(v.RequiredDocuments); total > 0 {
		uploaded := total - len(v.MissingDocuments())
		docShare = float64(uploaded) / float64(total)
	}

	score := docShare * 60
	if v.Status != StatusDraft {
		score += 20
	}
	if v.Status == StatusApproved {
		score += 20
	}
	return int(math.Min(100, math.Round(score)))
}
