package ingest

import (
	"time"

	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
)

// runMetrics accumulates per-phase timings for one pipeline run and logs
// them as a single field bundle when the run finishes.
type runMetrics struct {
	logger *log.Logger
	source domain.SourceType
	start  time.Time

	ingestDuration time.Duration
	enrichDuration time.Duration
}

func newRunMetrics(logger *log.Logger, source domain.SourceType) *runMetrics {
	return &runMetrics{logger: logger, source: source, start: time.Now()}
}

// Phase marks the start of a phase; the returned func records its duration.
func (m *runMetrics) Phase(phase domain.PipelinePhase) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		switch phase {
		case domain.PhaseIngest:
			m.ingestDuration = d
		case domain.PhaseEnrich:
			m.enrichDuration = d
		}
	}
}

func (m *runMetrics) Log(result *Result, err error) {
	if m == nil || m.logger == nil {
		return
	}
	fields := log.Fields{
		"source":   string(m.source),
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.ingestDuration > 0 {
		fields["ingest_ms"] = durationToMillis(m.ingestDuration)
	}
	if m.enrichDuration > 0 {
		fields["enrich_ms"] = durationToMillis(m.enrichDuration)
	}
	if result != nil {
		fields["entities"] = len(result.Entities)
		fields["relationships"] = len(result.Relationships)
		fields["tasks_generated"] = result.Analysis.TasksGenerated
	}
	if err != nil {
		fields["error"] = err.Error()
		if domain.IsPartialPipelineFailure(err) {
			fields["error_stage"] = "enrich"
		} else {
			fields["error_stage"] = "ingest"
		}
	}
	m.logger.WithFields(fields).Info("context.analyze.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
