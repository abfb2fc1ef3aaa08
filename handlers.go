package main

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
)

/*** Entry / id capture ***/

var (
	participantIDRe = regexp.MustCompile(`^[a-zA-Z0-9]{4,}$`)
	whitespaceRe    = regexp.MustCompile(`\s`)
)

type JoinReq struct {
	ParticipantID string `json:"participantId"`
}

type JoinResp struct {
	ParticipantID  string     `json:"participantId"`
	StartQuestion  int        `json:"startQuestion"`
	Completed      bool       `json:"completed"`
	TotalQuestions int        `json:"totalQuestions"`
	Survey         SurveyInfo `json:"survey"`
}

// JoinSurvey validates the self-chosen id and creates the participant on
// first contact. Idempotent: a returning id gets its existing progress back.
func JoinSurvey(store DocumentStore, catalog *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JoinReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		id := whitespaceRe.ReplaceAllString(req.ParticipantID, "")
		if !participantIDRe.MatchString(id) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "participant id must be at least 4 letters or digits"})
			return
		}

		rec, err := getOrCreateParticipant(c.Request.Context(), store, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		c.JSON(http.StatusOK, JoinResp{
			ParticipantID:  id,
			StartQuestion:  rec.CurrentQuestion,
			Completed:      rec.Completed,
			TotalQuestions: catalog.Total(),
			Survey:         catalog.Info,
		})
	}
}

// EntryInfo is the payload unknown routes resolve to.
func EntryInfo(catalog *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"survey":         catalog.Info,
			"totalQuestions": catalog.Total(),
		})
	}
}

func ListQuestions(catalog *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]QuestionDTO, 0, catalog.Total())
		for _, q := range catalog.Questions {
			out = append(out, questionDTO(q))
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetParticipant(store DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok, err := getParticipant(c.Request.Context(), store, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

/*** Survey progression ***/

// sessionOr404 resolves the live session and writes the redirect-style errors
// shared by every progression endpoint.
func sessionOr404(c *gin.Context, mgr *SessionManager) *SurveySession {
	s, err := mgr.Session(c.Request.Context(), c.Param("id"))
	if err == nil {
		return s
	}
	switch {
	case errors.Is(err, ErrUnknownParticipant):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
	case errors.Is(err, ErrSurveyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "survey already completed", "completed": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
	}
	return nil
}

func SurveyState(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

type SelectReq struct {
	Value any `json:"value"`
}

func SelectAnswer(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		var req SelectReq
		if err := c.BindJSON(&req); err != nil || req.Value == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if err := s.Select(c.Request.Context(), req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

type DraftReq struct {
	Text string `json:"text"`
}

func UpdateDraft(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		var req DraftReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if err := s.UpdateDraft(req.Text); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

func NextQuestion(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		if err := s.Next(c.Request.Context()); err != nil {
			if errors.Is(err, ErrAnswerRequired) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "answer required"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

func PrevQuestion(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		if err := s.Prev(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

// SubmitSurvey completes the survey. Submission failures are surfaced so the
// participant can retry; the record stays unsubmitted until the write lands.
func SubmitSurvey(mgr *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessionOr404(c, mgr)
		if s == nil {
			return
		}
		if err := s.Submit(c.Request.Context()); err != nil {
			if errors.Is(err, ErrAnswerRequired) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "answer required"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed, please retry"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"completed": true})
	}
}

/*** Results dashboard ***/

type ResultItem struct {
	Question QuestionDTO    `json:"question"`
	Count    int            `json:"count"`
	Scale    *ScaleStats    `json:"scale,omitempty"`
	Choice   map[string]int `json:"choice,omitempty"`
	TextPage *TextPageView  `json:"textPage,omitempty"`
}

func Results(cache *ResultsCache, store DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		aggregates, respondents := cache.Snapshot()
		completed, err := completedCount(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}

		items := make([]ResultItem, 0, len(aggregates))
		for _, a := range aggregates {
			item := ResultItem{Question: a.Question, Count: a.Count, Scale: a.Scale, Choice: a.Choice}
			if a.Question.Type == TypeText {
				page := TextPage(a.Texts, 1)
				item.TextPage = &page
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{
			"totalRespondents": respondents,
			"completedCount":   completed,
			"items":            items,
		})
	}
}

// TextResponses pages one text question's responses.
// Query params: ?page=1 (cursor clamps into range).
func TextResponses(cache *ResultsCache, catalog *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		qid := c.Param("questionId")
		q, ok := catalog.ByID(qid)
		if !ok || q.Type != TypeText {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		page := 1
		if p := c.Query("page"); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				page = n
			}
		}
		texts, _ := cache.TextsFor(qid)
		c.JSON(http.StatusOK, TextPage(texts, page))
	}
}

/*** AI analysis ***/

func AnalysisStatusList(an *Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := an.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func writeAnalysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
	case errors.Is(err, ErrNoResponses):
		c.JSON(http.StatusConflict, gin.H{"error": "no responses to analyze"})
	case errors.Is(err, ErrAnalysisInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already running"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func RunQuestionAnalysis(an *Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := an.AnalyzeQuestion(c.Request.Context(), c.Param("questionId"))
		if err != nil {
			writeAnalysisError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// RunAllAnalyses analyzes every not-yet-analyzed text question, one LLM call
// at a time.
func RunAllAnalyses(an *Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := an.AnalyzeAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// GetQuestionAnalysis returns the cached analysis rendered into block nodes,
// alongside the raw responses it was derived from. Absence of a cached
// analysis is a normal state, reported as "not available yet".
func GetQuestionAnalysis(store DocumentStore, catalog *Catalog, cache *ResultsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		qid := c.Param("questionId")
		q, ok := catalog.ByID(qid)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		rec, ok, err := getQuestionAnalysis(c.Request.Context(), store, qid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not available yet"})
			return
		}
		texts, _ := cache.TextsFor(qid)
		c.JSON(http.StatusOK, gin.H{
			"question":  questionDTO(q),
			"analysis":  rec,
			"blocks":    RenderMarkdown(rec.Result),
			"responses": texts,
		})
	}
}

func RunComprehensiveAnalysis(an *Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := an.AnalyzeComprehensive(c.Request.Context())
		if err != nil {
			writeAnalysisError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func GetComprehensiveAnalysis(store DocumentStore, catalog *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok, err := getComprehensiveAnalysis(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "comprehensive analysis not available yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"analysisTarget": catalog.Total(),
			"analysis":       rec,
			"blocks":         RenderMarkdown(rec.Result),
		})
	}
}
