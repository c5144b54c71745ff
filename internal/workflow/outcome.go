package workflow

// Workflow outcomes, used as metric labels and span attributes.
const (
	outcomeAdded         = "added"
	outcomeUpdated       = "updated"
	outcomeLowConfidence = "low_confidence"
	outcomeRefused       = "refused"
	outcomeFailed        = "failed"
	outcomeNotFound      = "not_found"
	outcomeAmbiguous     = "ambiguous"
	outcomePrompted      = "prompted"
	outcomeReminded      = "reminded"
	outcomeDeleted       = "deleted"
	outcomeCancelled     = "cancelled"
	outcomeExpired       = "expired"
	outcomeAnswered      = "answered"
	outcomeClarify       = "clarify"
	outcomePanic         = "panic"
)
