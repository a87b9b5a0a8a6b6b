package domain

import (
	"fmt"
	"sort"
)

// SourceType tags where raw context text came from.
type SourceType string

const (
	SourceManual     SourceType = "manual"
	SourceSlack      SourceType = "slack"
	SourceTranscript SourceType = "transcript"
)

// Valid reports whether s is a known context source.
func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourceSlack, SourceTranscript:
		return true
	}
	return false
}

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityProject EntityType = "PROJECT"
	EntityTeam    EntityType = "TEAM"
	EntityDate    EntityType = "DATE"
)

// Entity is a single item extracted from ingested context.
type Entity struct {
	ID         string            `json:"id"`
	Type       EntityType        `json:"type"`
	Name       string            `json:"name"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Relationship links two extracted entities.
type Relationship struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// QualityMetrics carries the backend's [0,1] quality scores. These live on a
// different scale than proposal confidence and must never be compared to it.
type QualityMetrics struct {
	EntityQuality       float64 `json:"entity_quality"`
	RelationshipQuality float64 `json:"relationship_quality"`
	TaskQuality         float64 `json:"task_quality"`
	ContextComplexity   float64 `json:"context_complexity"`
}

// ContextAnalysisResult is the header returned by a context ingestion call.
// Immutable once produced.
type ContextAnalysisResult struct {
	ContextItemID         string         `json:"context_item_id"`
	EntitiesExtracted     int            `json:"entities_extracted"`
	RelationshipsInferred int            `json:"relationships_inferred"`
	TasksGenerated        int            `json:"tasks_generated"`
	QualityMetrics        QualityMetrics `json:"quality_metrics"`
	ReasoningSteps        []string       `json:"reasoning_steps,omitempty"`
}

// CountEntitiesByType groups extracted entities into per-type counts.
func CountEntitiesByType(entities []Entity) map[EntityType]int {
	if len(entities) == 0 {
		return map[EntityType]int{}
	}
	counts := make(map[EntityType]int, 4)
	for _, e := range entities {
		counts[e.Type]++
	}
	return counts
}

// RelationshipLabel renders a relationship as a human-readable sentence.
func RelationshipLabel(r Relationship) string {
	return fmt.Sprintf("%s %s %s", r.Subject, r.Predicate, r.Object)
}

// RelationshipLabels renders all relationships in input order.
func RelationshipLabels(rels []Relationship) []string {
	labels := make([]string, len(rels))
	for i, r := range rels {
		labels[i] = RelationshipLabel(r)
	}
	return labels
}

// SortedEntityTypes returns the type keys of a count map in stable order,
// for deterministic presentation.
func SortedEntityTypes(counts map[EntityType]int) []EntityType {
	types := make([]EntityType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
