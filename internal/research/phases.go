package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/oracle"
	"github.com/praxis-labs/deepresearch/internal/retriever"
)

const planSystemPrompt = `You are a research planner. Decompose the query into a structured research plan.

Respond with a JSON object containing:
- sub_questions: specific questions to research
- key_areas: main topics to investigate
- search_strategies: search approaches to use
- sources_to_check: recommended source types
- estimated_complexity: Low/Medium/High
- research_depth: Surface/Deep/Comprehensive`

const analyzeSystemPrompt = `You are a research analyst. Evaluate the credibility and relevance of the sources, extract key facts, and flag contradictions and gaps.

Respond with a JSON object containing:
- key_facts: important facts discovered
- insights: key insights
- contradictions: contradictory information found
- gaps: information gaps identified
- overall_quality: Unknown/Low/Medium/High`

const synthesizeSystemPrompt = `You are an information synthesizer. Merge the research findings into coherent insights.

Respond with a JSON object containing:
- key_insights: main insights discovered
- patterns: patterns identified across sources
- implications: important implications
- recommendations: actionable recommendations
- further_research: areas needing more research
- confidence_level: Low/Medium/High`

const reportSystemPrompt = `You are a report writer. Produce a professional research report in markdown with these sections: Executive Summary, Key Findings, Detailed Analysis, Conclusions and Recommendations, Sources, Areas for Further Research.`

const decideSystemPrompt = `You are a research coordinator. Decide whether additional research would materially improve the findings.

Respond with a JSON object containing:
- needs_more_research: true/false
- reasoning: explanation of the decision
- additional_queries: specific follow-up queries to research`

// nodes bundles the collaborators the phase functions need. Every node takes
// the state by value and returns the next state; the orchestrator commits
// the returned value, so a failed or cancelled node leaves no partial write.
type nodes struct {
	oracle          oracle.Oracle
	retriever       retriever.Retriever
	logger          *zap.Logger
	maxSubQuestions int
	searchTopK      int
}

func defaultPlan(query string) Plan {
	return Plan{
		SubQuestions:        []string{query},
		KeyAreas:            []string{"general information"},
		SearchStrategies:    []string{"web search", "academic sources"},
		SourcesToCheck:      []string{"websites", "papers", "reports"},
		EstimatedComplexity: "Medium",
		ResearchDepth:       "Deep",
	}
}

func fallbackAnalysis() Analysis {
	return Analysis{
		KeyFacts: []string{"analysis output could not be parsed"},
		Insights: []string{"no insights extracted"},
		Gaps:     []string{"analysis incomplete"},
		Quality:  QualityUnknown,
	}
}

func fallbackSynthesis() Synthesis {
	return Synthesis{
		KeyInsights: []string{"synthesis output could not be parsed"},
		Confidence:  ConfidenceLow,
	}
}

// plan decomposes the query once, at session start. Malformed or failing
// oracle output degrades to a single-question default plan; planning never
// aborts the session.
func (n *nodes) plan(ctx context.Context, s State) (State, error) {
	s.Phase = PhasePlanning

	raw, err := n.oracle.Complete(ctx, oracle.CompletionRequest{
		Role:         oracle.RolePlanner,
		SystemPrompt: planSystemPrompt,
		UserPrompt:   fmt.Sprintf("Create a research plan for: %s", s.Query),
		Format:       oracle.FormatJSON,
	})

	var p Plan
	switch {
	case err != nil:
		n.logger.Warn("Planner oracle failed, using default plan", zap.Error(err))
		metrics.PhaseFallbacks.WithLabelValues("planning", "oracle_error").Inc()
		p = defaultPlan(s.Query)
	case unmarshalCompletion(raw, &p) != nil || len(p.SubQuestions) == 0:
		n.logger.Warn("Planner output unparseable, using default plan")
		metrics.PhaseFallbacks.WithLabelValues("planning", "malformed_output").Inc()
		p = defaultPlan(s.Query)
	}

	s.Plan = p
	s.trace(fmt.Sprintf("research plan created: %d sub-questions, %d key areas",
		len(p.SubQuestions), len(p.KeyAreas)))
	return s, nil
}

// searchQueries picks what to search this iteration: the plan's
// sub-questions on the first pass, the coordinator's follow-up queries on
// later passes when it provided any.
func (n *nodes) searchQueries(s State) []string {
	if s.IterationCount > 0 && len(s.Plan.AdditionalQueries) > 0 {
		// Newest follow-ups first; older ones were already searched.
		queries := s.Plan.AdditionalQueries
		if len(queries) > n.maxSubQuestions {
			queries = queries[len(queries)-n.maxSubQuestions:]
		}
		return queries
	}
	queries := s.Plan.SubQuestions
	if len(queries) == 0 {
		queries = []string{s.Query}
	}
	if len(queries) > n.maxSubQuestions {
		queries = queries[:n.maxSubQuestions]
	}
	return queries
}

// search gathers documents for this iteration's queries. Results are
// appended, never replaced; a failing retriever contributes zero documents
// and the session continues.
func (n *nodes) search(ctx context.Context, s State) (State, error) {
	s.Phase = PhaseSearching

	found := 0
	for _, q := range n.searchQueries(s) {
		docs, err := n.retriever.Search(ctx, q, n.searchTopK)
		if err != nil {
			if ctx.Err() != nil {
				return s, ctx.Err()
			}
			n.logger.Warn("Retriever search failed, treating as zero documents",
				zap.String("query", q), zap.Error(err))
			continue
		}
		s.Documents = append(s.Documents, docs...)
		found += len(docs)
	}

	s.trace(fmt.Sprintf("found %d relevant sources (%d total)", found, len(s.Documents)))
	return s, nil
}

// analyze evaluates the newest document batch. Malformed output degrades to
// a quality=Unknown placeholder; the workflow always proceeds.
func (n *nodes) analyze(ctx context.Context, s State) (State, error) {
	s.Phase = PhaseAnalyzing

	newDocs := s.Documents[s.analyzedDocs:]
	raw, err := n.oracle.Complete(ctx, oracle.CompletionRequest{
		Role:         oracle.RoleAnalyst,
		SystemPrompt: analyzeSystemPrompt,
		UserPrompt:   analyzeUserPrompt(s.Query, newDocs),
		Format:       oracle.FormatJSON,
	})

	var a Analysis
	switch {
	case err != nil:
		n.logger.Warn("Analyst oracle failed, using fallback analysis", zap.Error(err))
		metrics.PhaseFallbacks.WithLabelValues("analyzing", "oracle_error").Inc()
		a = fallbackAnalysis()
	case unmarshalCompletion(raw, &a) != nil:
		n.logger.Warn("Analyst output unparseable, using fallback analysis")
		metrics.PhaseFallbacks.WithLabelValues("analyzing", "malformed_output").Inc()
		a = fallbackAnalysis()
	}
	if a.Quality == "" {
		a.Quality = QualityUnknown
	}

	s.Analysis = a
	s.analyzedDocs = len(s.Documents)
	s.trace(fmt.Sprintf("analysis completed: %d key facts identified", len(a.KeyFacts)))
	return s, nil
}

func analyzeUserPrompt(query string, docs []retriever.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following sources for the query: %s\n\nSources:\n", query)
	if len(docs) == 0 {
		b.WriteString("(no sources were found for this iteration)\n")
		return b.String()
	}
	for _, d := range docs {
		content := d.Content
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, relevance %.2f): %s\n",
			d.SourceType, d.Title, d.URL, d.RelevanceScore, content)
	}
	return b.String()
}

// synthesize merges the analysis and plan into findings. Same degradation
// policy as analyze.
func (n *nodes) synthesize(ctx context.Context, s State) (State, error) {
	s.Phase = PhaseSynthesizing

	planJSON, _ := json.Marshal(s.Plan)
	analysisJSON, _ := json.Marshal(s.Analysis)
	raw, err := n.oracle.Complete(ctx, oracle.CompletionRequest{
		Role:         oracle.RoleSynthesizer,
		SystemPrompt: synthesizeSystemPrompt,
		UserPrompt: fmt.Sprintf("Synthesize the research findings for: %s\n\nResearch Plan:\n%s\n\nAnalysis Results:\n%s",
			s.Query, planJSON, analysisJSON),
		Format: oracle.FormatJSON,
	})

	var syn Synthesis
	switch {
	case err != nil:
		n.logger.Warn("Synthesizer oracle failed, using fallback synthesis", zap.Error(err))
		metrics.PhaseFallbacks.WithLabelValues("synthesizing", "oracle_error").Inc()
		syn = fallbackSynthesis()
	case unmarshalCompletion(raw, &syn) != nil:
		n.logger.Warn("Synthesizer output unparseable, using fallback synthesis")
		metrics.PhaseFallbacks.WithLabelValues("synthesizing", "malformed_output").Inc()
		syn = fallbackSynthesis()
	}
	if syn.Confidence == "" {
		syn.Confidence = ConfidenceLow
	}

	s.Synthesis = syn
	s.trace(fmt.Sprintf("synthesis completed: %d insights generated", len(syn.KeyInsights)))
	return s, nil
}

// report produces the externally visible deliverable. This is the one phase
// whose oracle failure is terminal: without a report there is no usable
// output to degrade to.
func (n *nodes) report(ctx context.Context, s State) (State, error) {
	s.Phase = PhaseReporting

	planJSON, _ := json.Marshal(s.Plan)
	analysisJSON, _ := json.Marshal(s.Analysis)
	synthesisJSON, _ := json.Marshal(s.Synthesis)
	text, err := n.oracle.Complete(ctx, oracle.CompletionRequest{
		Role:         oracle.RoleReporter,
		SystemPrompt: reportSystemPrompt,
		UserPrompt: fmt.Sprintf("Create a comprehensive research report for: %s\n\nResearch Plan:\n%s\n\nAnalysis Results:\n%s\n\nSynthesis:\n%s",
			s.Query, planJSON, analysisJSON, synthesisJSON),
		Format: oracle.FormatText,
	})
	if err != nil {
		s.Report = fmt.Sprintf("report generation failed: %v", err)
		return s, fmt.Errorf("report phase: %w", err)
	}

	s.Report = text
	s.trace(fmt.Sprintf("final report generated: %d characters", len(text)))
	return s, nil
}

type iterationDecision struct {
	NeedsMoreResearch bool     `json:"needs_more_research"`
	Reasoning         string   `json:"reasoning"`
	AdditionalQueries []string `json:"additional_queries"`
}

// decide routes between another search pass and termination. The iteration
// ceiling is enforced here, before the oracle is consulted, so no oracle
// output can ever extend a session past MaxIterations. A malformed or
// failing decision defaults to termination, never to another loop.
func (n *nodes) decide(ctx context.Context, s State) (State, error) {
	s.Phase = PhaseIterating

	if s.IterationCount >= s.MaxIterations {
		s.Complete = true
		s.trace("iteration ceiling reached, research complete")
		return s, nil
	}

	synthesisJSON, _ := json.Marshal(s.Synthesis)
	raw, err := n.oracle.Complete(ctx, oracle.CompletionRequest{
		Role:         oracle.RoleCoordinator,
		SystemPrompt: decideSystemPrompt,
		UserPrompt: fmt.Sprintf("Current research iteration: %d\n\nQuery: %s\n\nCurrent Synthesis:\n%s\n\nShould we conduct additional research?",
			s.IterationCount+1, s.Query, synthesisJSON),
		Format: oracle.FormatJSON,
	})

	var d iterationDecision
	switch {
	case err != nil:
		n.logger.Warn("Coordinator oracle failed, terminating research", zap.Error(err))
		metrics.PhaseFallbacks.WithLabelValues("iterating", "oracle_error").Inc()
	case unmarshalCompletion(raw, &d) != nil:
		n.logger.Warn("Coordinator output unparseable, terminating research")
		metrics.PhaseFallbacks.WithLabelValues("iterating", "malformed_output").Inc()
		d = iterationDecision{}
	}

	s.IterationCount++

	if d.NeedsMoreResearch {
		s.Plan.AdditionalQueries = append(s.Plan.AdditionalQueries, d.AdditionalQueries...)
		s.trace(fmt.Sprintf("additional research needed: %s", d.Reasoning))
		return s, nil
	}

	s.Complete = true
	s.trace("research iteration complete")
	return s, nil
}

// unmarshalCompletion parses model output into v, tolerating markdown code
// fences around the JSON body.
func unmarshalCompletion(raw string, v interface{}) error {
	return json.Unmarshal([]byte(stripCodeFences(raw)), v)
}

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```json") {
		t = strings.TrimPrefix(t, "```json")
	} else if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
	} else {
		return t
	}
	if idx := strings.LastIndex(t, "```"); idx != -1 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}
