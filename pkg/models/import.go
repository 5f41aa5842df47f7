package models

// ImportOutcome is the per-item result status of an import call.
type ImportOutcome string

const (
	ImportOutcomeCreated          ImportOutcome = "created"
	ImportOutcomeUpdated          ImportOutcome = "updated"
	ImportOutcomeImported         ImportOutcome = "imported"
	ImportOutcomeSkipped          ImportOutcome = "skipped"
	ImportOutcomeFailed           ImportOutcome = "failed"
	ImportOutcomeActivationFailed ImportOutcome = "activation_failed"
)

// ItemResult is the outcome of importing a single bundled workflow.
type ItemResult struct {
	Filename      string        `json:"filename"`
	Name          string        `json:"name"`
	Status        ImportOutcome `json:"status"`
	N8NWorkflowID string        `json:"n8n_workflow_id,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Failed reports whether the item result is a failure of either phase.
func (r *ItemResult) Failed() bool {
	return r.Status == ImportOutcomeFailed || r.Status == ImportOutcomeActivationFailed
}

// BatchResult aggregates a bulk two-phase import. A batch with some per-item
// failures is not an error at the transport level; only the phase-1 gate
// turns individual failures into a batch error.
type BatchResult struct {
	Total     int           `json:"total"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Activated int           `json:"activated"`
	Failed    int           `json:"failed"`
	Results   []*ItemResult `json:"results"`
	Error     string        `json:"error,omitempty"` // batch-level error (phase-1 gate)
}

// Recount recomputes the aggregate counters from the per-item results.
func (b *BatchResult) Recount() {
	b.Total = len(b.Results)
	b.Created, b.Updated, b.Skipped, b.Activated, b.Failed = 0, 0, 0, 0, 0

	for _, r := range b.Results {
		switch r.Status {
		case ImportOutcomeCreated:
			b.Created++
		case ImportOutcomeUpdated:
			b.Updated++
		case ImportOutcomeImported:
			b.Activated++
		case ImportOutcomeSkipped:
			b.Skipped++
		case ImportOutcomeFailed, ImportOutcomeActivationFailed:
			b.Failed++
		}
	}
}
