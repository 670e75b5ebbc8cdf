package research

import (
	"context"
	"time"

	"github.com/praxis-labs/deepresearch/internal/retriever"
)

// Phase is one position in the research workflow. Phases advance
// monotonically except for the bounded Reporting -> Iterating -> Searching
// back-edge.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseSearching
	PhaseAnalyzing
	PhaseSynthesizing
	PhaseReporting
	PhaseIterating
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseSearching:
		return "searching"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseReporting:
		return "reporting"
	case PhaseIterating:
		return "iterating"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Quality rates the gathered evidence.
type Quality string

const (
	QualityUnknown Quality = "Unknown"
	QualityLow     Quality = "Low"
	QualityMedium  Quality = "Medium"
	QualityHigh    Quality = "High"
)

// Confidence rates the synthesized findings.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Plan is the research plan produced once by the planning phase. The decide
// phase may append follow-up queries; nothing else mutates it.
type Plan struct {
	SubQuestions        []string `json:"sub_questions"`
	KeyAreas            []string `json:"key_areas"`
	SearchStrategies    []string `json:"search_strategies"`
	SourcesToCheck      []string `json:"sources_to_check"`
	EstimatedComplexity string   `json:"estimated_complexity"`
	ResearchDepth       string   `json:"research_depth"`
	AdditionalQueries   []string `json:"additional_queries"`
}

// Analysis is the per-iteration evaluation of gathered documents. It is
// replaced wholesale each iteration.
type Analysis struct {
	KeyFacts       []string `json:"key_facts"`
	Insights       []string `json:"insights"`
	Contradictions []string `json:"contradictions"`
	Gaps           []string `json:"gaps"`
	Quality        Quality  `json:"overall_quality"`
}

// Synthesis merges the analysis into cross-source findings. Replaced each
// iteration.
type Synthesis struct {
	KeyInsights     []string   `json:"key_insights"`
	Patterns        []string   `json:"patterns"`
	Implications    []string   `json:"implications"`
	Recommendations []string   `json:"recommendations"`
	FurtherResearch []string   `json:"further_research"`
	Confidence      Confidence `json:"confidence_level"`
}

// State is the single-owner state of one research session. It is mutated
// only by phase nodes, each of which works on a value copy and commits
// atomically, so a cancelled phase never leaves partial mutation behind.
type State struct {
	Query          string
	Phase          Phase
	Plan           Plan
	Documents      []retriever.Document
	Analysis       Analysis
	Synthesis      Synthesis
	Report         string
	IterationCount int
	MaxIterations  int
	Complete       bool
	Trace          []string

	// analyzedDocs marks how many documents earlier iterations already
	// analyzed, so the analyst prompt only carries the newest batch.
	analyzedDocs int
}

func newState(query string, maxIterations int) State {
	return State{
		Query:         query,
		Phase:         PhasePlanning,
		MaxIterations: maxIterations,
	}
}

func (s *State) trace(msg string) {
	s.Trace = append(s.Trace, msg)
}

// Status is the terminal outcome of a research session.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is what callers receive for every session, successful or not.
type Result struct {
	ID             string               `json:"id"`
	Query          string               `json:"query"`
	FinalReport    string               `json:"final_report"`
	Plan           Plan                 `json:"research_plan"`
	Documents      []retriever.Document `json:"search_results"`
	Analysis       Analysis             `json:"analysis_results"`
	Synthesis      Synthesis            `json:"synthesis"`
	IterationCount int                  `json:"iteration_count"`
	Status         Status               `json:"status"`
	Error          string               `json:"error,omitempty"`
	Trace          []string             `json:"trace,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}

// Summary is a compact listing view of a stored result.
type Summary struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Status         Status    `json:"status"`
	IterationCount int       `json:"iteration_count"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Store is the optional append-only log the orchestrator persists finished
// results to. The full read-side contract lives in the session package.
type Store interface {
	Append(ctx context.Context, result Result) error
}
