package models

import "time"

// FailurePattern is a recurring failure template mined from past
// investigations held in the history store.
type FailurePattern struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	HypothesisType HypothesisType `json:"hypothesis_type"`
	ResourceKinds  []ResourceKind `json:"resource_kinds"`
	Occurrences    int            `json:"occurrences"`
	Prevalence     float64        `json:"prevalence"`
	MeanConfidence float64        `json:"mean_confidence"`
	LastSeen       time.Time      `json:"last_seen"`
}
