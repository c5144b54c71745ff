package decision

// Related is one entry of a relatedness answer. Ordinal is the 1-based
// position in the record list sent with that call and is not an id.
type Related struct {
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// RelatedResult is the relatedness capability's answer.
type RelatedResult struct {
	Items     []Related `json:"related_decisions"`
	Rationale string    `json:"rationale"`
}

// Resolve maps each ordinal onto snapshot, the exact list sent to the
// capability. Ordinals outside the list are returned in dropped.
// Repeated ordinals resolve once.
func (r RelatedResult) Resolve(snapshot []Record) (resolved []Record, dropped []int) {
	seen := make(map[int]bool, len(r.Items))
	for _, item := range r.Items {
		if item.Ordinal < 1 || item.Ordinal > len(snapshot) {
			dropped = append(dropped, item.Ordinal)
			continue
		}
		if seen[item.Ordinal] {
			continue
		}
		seen[item.Ordinal] = true
		resolved = append(resolved, snapshot[item.Ordinal-1])
	}
	return resolved, dropped
}

// Similarity is the comparator's verdict on a candidate.
type Similarity struct {
	IsSimilar bool
	Score     int
	MatchedID string
}

// UpdateTarget names the record to change and the fields that change.
type UpdateTarget struct {
	DecisionID string
	Changes    Fields
	Confidence int
}

// Summary is a structured thread summary.
type Summary struct {
	Overview      string   `json:"overview"`
	OpenPoints    []string `json:"open_points"`
	DecisionsMade []string `json:"decisions_made"`
	NextSteps     []string `json:"next_steps"`
	Confidence    int      `json:"confidence"`
}
