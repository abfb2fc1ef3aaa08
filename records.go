package main

import (
	"context"
	"fmt"
	"time"
)

// Store paths. Analysis records are cached derivations, never source of truth.
const (
	usersPath         = "users"
	responsesPath     = "responses"
	analysisPath      = "analysis"
	comprehensivePath = "comprehensiveAnalysis"
)

func userPath(participantID string) string {
	return usersPath + "/" + participantID
}

func responsePath(participantID, questionID string) string {
	return responsesPath + "/" + participantID + "/" + questionID
}

func questionAnalysisPath(questionID string) string {
	return analysisPath + "/" + questionID
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// getParticipant reads users/{id}.
func getParticipant(ctx context.Context, store DocumentStore, id string) (ParticipantRecord, bool, error) {
	var rec ParticipantRecord
	ok, err := store.Get(ctx, userPath(id), &rec)
	return rec, ok, err
}

// getOrCreateParticipant is idempotent: a known id returns the existing record
// untouched, a new id starts at question 1.
func getOrCreateParticipant(ctx context.Context, store DocumentStore, id string) (ParticipantRecord, error) {
	rec, ok, err := getParticipant(ctx, store, id)
	if err != nil {
		return ParticipantRecord{}, err
	}
	if ok {
		return rec, nil
	}
	rec = ParticipantRecord{
		CurrentQuestion: 1,
		StartedAt:       nowMillis(),
		LastUpdatedAt:   nowMillis(),
	}
	if err := store.Set(ctx, userPath(id), rec); err != nil {
		return ParticipantRecord{}, fmt.Errorf("create participant: %w", err)
	}
	return rec, nil
}

// updateProgress persists the 1-based progress marker.
func updateProgress(ctx context.Context, store DocumentStore, id string, questionNumber int) error {
	return store.Update(ctx, userPath(id), map[string]any{
		"currentQuestion": questionNumber,
		"lastUpdatedAt":   nowMillis(),
	})
}

func completeSurvey(ctx context.Context, store DocumentStore, id string) error {
	now := nowMillis()
	return store.Update(ctx, userPath(id), map[string]any{
		"completed":     true,
		"completedAt":   now,
		"lastUpdatedAt": now,
	})
}

// saveResponse overwrites the (participant, question) response; last write
// wins, no history.
func saveResponse(ctx context.Context, store DocumentStore, participantID, questionID string, value any) error {
	return store.Set(ctx, responsePath(participantID, questionID), StoredResponse{
		Value:      value,
		AnsweredAt: nowMillis(),
	})
}

// participantResponses reads responses/{id} as questionId -> response.
func participantResponses(ctx context.Context, store DocumentStore, participantID string) (map[string]StoredResponse, error) {
	out := map[string]StoredResponse{}
	if _, err := store.Get(ctx, responsesPath+"/"+participantID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// allResponses reads the full response set: participantId -> questionId -> response.
func allResponses(ctx context.Context, store DocumentStore) (map[string]map[string]StoredResponse, error) {
	out := map[string]map[string]StoredResponse{}
	if _, err := store.Get(ctx, responsesPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// completedCount counts participants with completed = true.
func completedCount(ctx context.Context, store DocumentStore) (int, error) {
	users := map[string]ParticipantRecord{}
	if _, err := store.Get(ctx, usersPath, &users); err != nil {
		return 0, err
	}
	n := 0
	for _, u := range users {
		if u.Completed {
			n++
		}
	}
	return n, nil
}

func saveQuestionAnalysis(ctx context.Context, store DocumentStore, questionID string, rec AnalysisRecord) error {
	return store.Set(ctx, questionAnalysisPath(questionID), rec)
}

func getQuestionAnalysis(ctx context.Context, store DocumentStore, questionID string) (AnalysisRecord, bool, error) {
	var rec AnalysisRecord
	ok, err := store.Get(ctx, questionAnalysisPath(questionID), &rec)
	return rec, ok, err
}

func allQuestionAnalyses(ctx context.Context, store DocumentStore) (map[string]AnalysisRecord, error) {
	out := map[string]AnalysisRecord{}
	if _, err := store.Get(ctx, analysisPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveComprehensiveAnalysis(ctx context.Context, store DocumentStore, rec AnalysisRecord) error {
	return store.Set(ctx, comprehensivePath, rec)
}

func getComprehensiveAnalysis(ctx context.Context, store DocumentStore) (AnalysisRecord, bool, error) {
	var rec AnalysisRecord
	ok, err := store.Get(ctx, comprehensivePath, &rec)
	return rec, ok, err
}
