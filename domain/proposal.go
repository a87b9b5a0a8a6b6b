package domain

import "time"

// ConfidenceBand classifies a [0,100] proposal confidence. Banding is the
// single source of truth for every display surface and approval gate.
type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "high"
	BandMedium ConfidenceBand = "medium"
	BandLow    ConfidenceBand = "low"
)

// BandConfidence maps a [0,100] confidence to its band. Boundaries are
// inclusive at the lower edge: 80 is high, 50 is medium.
func BandConfidence(confidence float64) ConfidenceBand {
	switch {
	case confidence >= 80:
		return BandHigh
	case confidence >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// RecommendedAction is assigned by the assistant backend alongside a
// proposal. The queue preserves it verbatim; it is never recomputed locally.
type RecommendedAction string

const (
	ActionAuto           RecommendedAction = "auto"
	ActionAsk            RecommendedAction = "ask"
	ActionClarify        RecommendedAction = "clarify"
	ActionAnswerQuestion RecommendedAction = "answer_question"
)

// AutoApprovable reports whether the backend marked the proposal safe to
// commit without explicit confirmation.
func (a RecommendedAction) AutoApprovable() bool {
	return a == ActionAuto
}

// TaskProposal is an AI-suggested task awaiting human decision. Proposals
// live only in the proposal queue and are never persisted remotely; approval
// promotes them to a Task through the board controller.
type TaskProposal struct {
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	Assignee          string             `json:"assignee,omitempty"`
	DueDate           *time.Time         `json:"dueDate,omitempty"`
	Priority          string             `json:"priority,omitempty"`
	ValueStream       string             `json:"valueStream,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	Confidence        float64            `json:"confidence"`
	ConfidenceFactors map[string]float64 `json:"confidence_factors,omitempty"`
	Reasoning         string             `json:"reasoning,omitempty"`
	RecommendedAction RecommendedAction  `json:"recommended_action,omitempty"`
}

// Band returns the confidence band of the proposal.
func (p TaskProposal) Band() ConfidenceBand {
	return BandConfidence(p.Confidence)
}

// Draft converts an approved proposal into a creation payload. New tasks
// always start in the todo column.
func (p TaskProposal) Draft() TaskDraft {
	return TaskDraft{
		Title:       p.Title,
		Description: p.Description,
		Status:      StatusTodo,
		Assignee:    p.Assignee,
		ValueStream: p.ValueStream,
		DueDate:     p.DueDate,
	}
}
