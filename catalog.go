package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// SurveyInfo is the entry-screen metadata.
type SurveyInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Catalog is the immutable, ordered question list plus survey metadata.
type Catalog struct {
	Info      SurveyInfo
	Questions []Question

	byID map[string]int // id -> index
}

func NewCatalog(info SurveyInfo, questions []Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("catalog has no questions")
	}
	byID := make(map[string]int, len(questions))
	dups := []string{}
	for i, q := range questions {
		if _, ok := byID[q.ID]; ok {
			dups = append(dups, q.ID)
		}
		byID[q.ID] = i
	}
	if len(dups) > 0 {
		return nil, fmt.Errorf("duplicate question IDs: %v", dups)
	}
	return &Catalog{Info: info, Questions: questions, byID: byID}, nil
}

// Total returns the number of questions.
func (c *Catalog) Total() int { return len(c.Questions) }

// ByID looks a question up by id.
func (c *Catalog) ByID(id string) (Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	return c.Questions[i], true
}

// TextQuestions returns the free-text questions in catalog order.
func (c *Catalog) TextQuestions() []Question {
	var out []Question
	for _, q := range c.Questions {
		if q.Type == TypeText {
			out = append(out, q)
		}
	}
	return out
}

// LoadCatalogFromJSON reads a catalog file. Accepts either a bare array of
// questions or an object { "title": ..., "description": ..., "questions": [...] }.
func LoadCatalogFromJSON(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Questions   []Question `json:"questions"`
	}
	var arr []Question

	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Questions) > 0 {
		return NewCatalog(SurveyInfo{Title: wrapper.Title, Description: wrapper.Description}, wrapper.Questions)
	} else if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("json parse: %w", err)
	}
	return NewCatalog(defaultSurveyInfo, arr)
}

// DefaultCatalog is the built-in quarterly retrospective questionnaire, used
// when no catalog file is present.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultSurveyInfo, defaultQuestions())
	if err != nil {
		panic(err) // static data, validated by tests
	}
	return c
}

var defaultSurveyInfo = SurveyInfo{
	Title:       "Quarterly Squad Retrospective",
	Description: "An anonymous look back at the last quarter: how we worked, what got in the way, and what to change next.",
}

func defaultQuestions() []Question {
	return []Question{
		{
			ID: "q1-pace", Type: TypeScale, Section: "Delivery", SectionNumber: 1,
			Title:  "Sustainable pace",
			Prompt: "The team's delivery pace over the quarter felt sustainable.",
			Reason: "Chronic overload shows up here before it shows up in attrition.",
		},
		{
			ID: "q1-scope", Type: TypeScale, Section: "Delivery", SectionNumber: 1,
			Title:  "Scope clarity",
			Prompt: "Scope and priorities were clear when work started.",
		},
		{
			ID: "q1-blockers", Type: TypeText, Section: "Delivery", SectionNumber: 1,
			Title:  "Biggest blocker",
			Prompt: "What slowed the squad down the most this quarter?",
			Reason: "Free-text blockers feed the improvement backlog.",
		},
		{
			ID: "q2-decisions", Type: TypeScale, Section: "Collaboration", SectionNumber: 2,
			Title:  "Decision speed",
			Prompt: "Decisions that needed the whole squad were made quickly enough.",
		},
		{
			ID: "q2-ownership", Type: TypeChoice, Section: "Collaboration", SectionNumber: 2,
			Title:  "Ownership boundaries",
			Prompt: "Do you know who owns each part of the system you touch?",
		},
		{
			ID: "q2-friction", Type: TypeText, Section: "Collaboration", SectionNumber: 2,
			Title:  "Collaboration friction",
			Prompt: "Describe one moment where collaboration broke down. What would have helped?",
		},
		{
			ID: "q3-growth", Type: TypeScale, Section: "Growth", SectionNumber: 3,
			Title:  "Personal growth",
			Prompt: "I learned or improved a skill I care about this quarter.",
		},
		{
			ID: "q3-feedback", Type: TypeChoice, Section: "Growth", SectionNumber: 3,
			Title:  "Feedback loop",
			Prompt: "Did you receive actionable feedback on your work this quarter?",
		},
		{
			ID: "q3-support", Type: TypeText, Section: "Growth", SectionNumber: 3,
			Title:      "Missing support",
			Prompt:     "What support, tooling, or context were you missing?",
			IsOptional: true,
		},
		{
			ID: "q4-keep", Type: TypeText, Section: "Next quarter", SectionNumber: 4,
			Title:  "Keep doing",
			Prompt: "What is one thing the squad should absolutely keep doing?",
		},
		{
			ID: "q4-change", Type: TypeText, Section: "Next quarter", SectionNumber: 4,
			Title:  "Change",
			Prompt: "What is one thing you would change first, and why?",
		},
		{
			ID: "q4-confidence", Type: TypeScale, Section: "Next quarter", SectionNumber: 4,
			Title:  "Confidence",
			Prompt: "I am confident the next quarter will go better than the last one.",
		},
	}
}
