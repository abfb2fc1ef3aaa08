package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoResponses      = errors.New("no responses to analyze")
	ErrAnalysisInFlight = errors.New("analysis already running")
)

const analysisSystemPrompt = `You are an experienced engineering coach analyzing anonymous retrospective survey responses from one software team.

Write your analysis in markdown using only: headings (#..####), bullet or numbered lists, horizontal rules, simple pipe tables, and **bold**, *italic* or ` + "`code`" + ` emphasis.

Be concrete. Group similar responses into themes, note how many responses support each theme, quote short fragments where they help, and end with two or three actionable recommendations. Do not invent sentiments that are not in the responses.`

func buildQuestionPrompt(q Question, responses []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey question (%s, section %q): %s\n", q.ID, q.Section, q.Title)
	fmt.Fprintf(&b, "Full prompt shown to participants: %s\n", q.Prompt)
	if q.Reason != "" {
		fmt.Fprintf(&b, "Why this question is asked: %s\n", q.Reason)
	}
	fmt.Fprintf(&b, "\n%d anonymous responses:\n", len(responses))
	for i, r := range responses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nAnalyze these responses.")
	return b.String()
}

func buildComprehensivePrompt(info SurveyInfo, aggregates []QuestionAggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey: %s\n%s\n\nResults across all questions:\n", info.Title, info.Description)
	for _, a := range aggregates {
		q := a.Question
		fmt.Fprintf(&b, "\n[%s] %s (%s, %d responses)\n", q.ID, q.Title, q.Type, a.Count)
		switch {
		case a.Scale != nil:
			fmt.Fprintf(&b, "average %.2f/5, distribution 1..5: %v\n", a.Scale.Average, a.Scale.Distribution)
		case a.Choice != nil:
			for _, opt := range q.Options {
				fmt.Fprintf(&b, "%s: %d  ", opt, a.Choice[opt])
			}
			b.WriteString("\n")
		default:
			for _, t := range a.Texts {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
	}
	b.WriteString("\nWrite a comprehensive report over the whole survey: overall health, the strongest themes across questions, tensions between the numeric and free-text answers, and prioritized recommendations.")
	return b.String()
}

// Analyzer runs LLM analyses over the collected responses and caches the
// results in the store. Analyses are derived artifacts: overwritten on
// re-run, regenerable at any time.
type Analyzer struct {
	store   DocumentStore
	catalog *Catalog
	gen     TextGenerator

	mu       sync.Mutex
	inFlight map[string]bool // question id, or "" for the comprehensive run
}

func NewAnalyzer(store DocumentStore, catalog *Catalog, gen TextGenerator) *Analyzer {
	return &Analyzer{
		store:    store,
		catalog:  catalog,
		gen:      gen,
		inFlight: make(map[string]bool),
	}
}

func (a *Analyzer) begin(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight[key] {
		return false
	}
	a.inFlight[key] = true
	return true
}

func (a *Analyzer) end(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, key)
}

// InFlight reports whether an analysis is currently running for the question.
func (a *Analyzer) InFlight(questionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight[questionID]
}

// textResponsesFor collects every participant's non-empty answer to one text
// question, in sorted participant order.
func (a *Analyzer) textResponsesFor(ctx context.Context, questionID string) ([]string, error) {
	all, err := allResponses(ctx, a.store)
	if err != nil {
		return nil, err
	}
	for _, agg := range Aggregate(a.catalog, all) {
		if agg.Question.ID == questionID {
			return agg.Texts, nil
		}
	}
	return nil, nil
}

// AnalyzeQuestion runs one per-question analysis and overwrites the cached
// record. Exactly one record per question id, re-run or not.
func (a *Analyzer) AnalyzeQuestion(ctx context.Context, questionID string) (AnalysisRecord, error) {
	q, ok := a.catalog.ByID(questionID)
	if !ok {
		return AnalysisRecord{}, ErrQuestionNotFound
	}
	if q.Type != TypeText {
		return AnalysisRecord{}, fmt.Errorf("question %s is not a text question", questionID)
	}
	if !a.begin(questionID) {
		return AnalysisRecord{}, ErrAnalysisInFlight
	}
	defer a.end(questionID)

	responses, err := a.textResponsesFor(ctx, questionID)
	if err != nil {
		return AnalysisRecord{}, err
	}
	if len(responses) == 0 {
		return AnalysisRecord{}, ErrNoResponses
	}

	result, err := a.gen.Generate(ctx, analysisSystemPrompt, buildQuestionPrompt(q, responses))
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("analyze %s: %w", questionID, err)
	}
	rec := AnalysisRecord{Result: result, AnalyzedAt: nowMillis(), Model: a.gen.Model()}
	if err := saveQuestionAnalysis(ctx, a.store, questionID, rec); err != nil {
		return AnalysisRecord{}, fmt.Errorf("cache analysis %s: %w", questionID, err)
	}
	return rec, nil
}

// AnalysisRunItem is one question's outcome within an analyze-all run.
type AnalysisRunItem struct {
	QuestionID string `json:"questionId"`
	Status     string `json:"status"` // analyzed | skipped | failed
	Error      string `json:"error,omitempty"`
}

// AnalysisRun summarizes an analyze-all run.
type AnalysisRun struct {
	RunID string            `json:"runId"`
	Items []AnalysisRunItem `json:"items"`
}

// AnalyzeAll walks the text questions that have no cached analysis yet,
// strictly one at a time: each LLM call completes before the next starts.
// Sequential on purpose, to respect upstream rate limits. A failed question
// is recorded and the run moves on.
func (a *Analyzer) AnalyzeAll(ctx context.Context) (AnalysisRun, error) {
	run := AnalysisRun{RunID: uuid.New().String()}

	existing, err := allQuestionAnalyses(ctx, a.store)
	if err != nil {
		return run, err
	}
	for _, q := range a.catalog.TextQuestions() {
		if _, done := existing[q.ID]; done {
			run.Items = append(run.Items, AnalysisRunItem{QuestionID: q.ID, Status: "skipped"})
			continue
		}
		if _, err := a.AnalyzeQuestion(ctx, q.ID); err != nil {
			run.Items = append(run.Items, AnalysisRunItem{QuestionID: q.ID, Status: "failed", Error: err.Error()})
			continue
		}
		run.Items = append(run.Items, AnalysisRunItem{QuestionID: q.ID, Status: "analyzed"})
	}
	return run, nil
}

// AnalyzeComprehensive runs the whole-survey analysis. If the generated text
// cannot be cached, it is still returned: the operator sees the report, the
// write failure is logged.
func (a *Analyzer) AnalyzeComprehensive(ctx context.Context) (AnalysisRecord, error) {
	if !a.begin("") {
		return AnalysisRecord{}, ErrAnalysisInFlight
	}
	defer a.end("")

	all, err := allResponses(ctx, a.store)
	if err != nil {
		return AnalysisRecord{}, err
	}
	if len(all) == 0 {
		return AnalysisRecord{}, ErrNoResponses
	}
	aggregates := Aggregate(a.catalog, all)

	result, err := a.gen.Generate(ctx, analysisSystemPrompt, buildComprehensivePrompt(a.catalog.Info, aggregates))
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("comprehensive analysis: %w", err)
	}
	rec := AnalysisRecord{Result: result, AnalyzedAt: nowMillis(), Model: a.gen.Model()}
	if err := saveComprehensiveAnalysis(ctx, a.store, rec); err != nil {
		log.Printf("cache comprehensive analysis: %v", err)
	}
	return rec, nil
}

// QuestionAnalysisStatus is one row of the analysis trigger screen.
type QuestionAnalysisStatus struct {
	Question      QuestionDTO `json:"question"`
	ResponseCount int         `json:"responseCount"`
	Analyzed      bool        `json:"analyzed"`
	AnalyzedAt    int64       `json:"analyzedAt,omitempty"`
	Model         string      `json:"model,omitempty"`
	Running       bool        `json:"running"`
}

// Status lists every text question with its response count and cached
// analysis state.
func (a *Analyzer) Status(ctx context.Context) ([]QuestionAnalysisStatus, error) {
	all, err := allResponses(ctx, a.store)
	if err != nil {
		return nil, err
	}
	analyses, err := allQuestionAnalyses(ctx, a.store)
	if err != nil {
		return nil, err
	}
	byID := map[string]QuestionAggregate{}
	for _, agg := range Aggregate(a.catalog, all) {
		byID[agg.Question.ID] = agg
	}

	var out []QuestionAnalysisStatus
	for _, q := range a.catalog.TextQuestions() {
		row := QuestionAnalysisStatus{
			Question:      questionDTO(q),
			ResponseCount: len(byID[q.ID].Texts),
			Running:       a.InFlight(q.ID),
		}
		if rec, ok := analyses[q.ID]; ok {
			row.Analyzed = true
			row.AnalyzedAt = rec.AnalyzedAt
			row.Model = rec.Model
		}
		out = append(out, row)
	}
	return out, nil
}
