package main

// --- Questions ---

// QuestionType distinguishes how a question is asked and aggregated.
type QuestionType string

const (
	TypeScale  QuestionType = "scale"  // 1..5 rating
	TypeChoice QuestionType = "choice" // fixed options, yes/no/unknown by default
	TypeText   QuestionType = "text"   // free text
)

// Question is one catalog entry. The catalog is loaded once at startup and the
// slice order defines the presentation sequence.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Section       string       `json:"section"`
	SectionNumber int          `json:"sectionNumber"`
	Title         string       `json:"title"`
	Prompt        string       `json:"question"`
	Reason        string       `json:"reason,omitempty"`
	Options       []string     `json:"options,omitempty"` // choice only
	IsOptional    bool         `json:"isOptional,omitempty"`
}

// Required reports whether the question blocks forward navigation while
// unanswered.
func (q Question) Required() bool {
	return !q.IsOptional
}

// defaultChoiceOptions is the tally used when a choice question does not
// declare its own options.
var defaultChoiceOptions = []string{"yes", "no", "unknown"}

// --- Stored records (document store payloads) ---

// ParticipantRecord lives at users/{participantId}. CurrentQuestion is the
// 1-based progress marker a resumed session starts from.
type ParticipantRecord struct {
	CurrentQuestion int   `json:"currentQuestion"`
	Completed       bool  `json:"completed"`
	StartedAt       int64 `json:"startedAt"`
	CompletedAt     int64 `json:"completedAt,omitempty"`
	LastUpdatedAt   int64 `json:"lastUpdatedAt"`
}

// StoredResponse lives at responses/{participantId}/{questionId}. Value keeps
// the loose string-or-number shape the store holds; typed conversion happens
// in the aggregation layer.
type StoredResponse struct {
	Value      any   `json:"value"`
	AnsweredAt int64 `json:"answeredAt"`
}

// AnalysisRecord lives at analysis/{questionId} or comprehensiveAnalysis.
// Derived, cached artifacts only; absence is a normal state.
type AnalysisRecord struct {
	Result     string `json:"result"`
	AnalyzedAt int64  `json:"analyzedAt"`
	Model      string `json:"model"`
}

// --- DTOs shared across handlers ---

type QuestionDTO struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Section       string       `json:"section"`
	SectionNumber int          `json:"sectionNumber"`
	Title         string       `json:"title"`
	Question      string       `json:"question"`
	Reason        string       `json:"reason,omitempty"`
	Options       []string     `json:"options,omitempty"`
	IsOptional    bool         `json:"isOptional"`
}

func questionDTO(q Question) QuestionDTO {
	opts := q.Options
	if q.Type == TypeChoice && len(opts) == 0 {
		opts = defaultChoiceOptions
	}
	return QuestionDTO{
		ID:            q.ID,
		Type:          q.Type,
		Section:       q.Section,
		SectionNumber: q.SectionNumber,
		Title:         q.Title,
		Question:      q.Prompt,
		Reason:        q.Reason,
		Options:       opts,
		IsOptional:    q.IsOptional,
	}
}
