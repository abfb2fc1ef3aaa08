package main

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// textPageSize is the fixed page size for free-text response listings.
const textPageSize = 5

// ScaleStats is the 1..5 histogram plus the mean rounded to 2 decimals.
// Values that do not coerce into 1..5 are silently dropped from the
// distribution and the sum, but still divide the mean (source behavior,
// preserved as-is).
type ScaleStats struct {
	Average      float64 `json:"average"`
	Distribution [5]int  `json:"distribution"`
}

// QuestionAggregate is the per-question derived view over every
// participant's answer.
type QuestionAggregate struct {
	Question QuestionDTO    `json:"question"`
	Count    int            `json:"count"`
	Scale    *ScaleStats    `json:"scale,omitempty"`
	Choice   map[string]int `json:"choice,omitempty"`
	Texts    []string       `json:"-"` // served paged, not inline
}

// Aggregate groups the full response set by question, in catalog order.
// Participants are walked in sorted id order so text listings page
// deterministically.
func Aggregate(catalog *Catalog, all map[string]map[string]StoredResponse) []QuestionAggregate {
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]QuestionAggregate, 0, catalog.Total())
	for _, q := range catalog.Questions {
		var values []any
		for _, pid := range ids {
			r, ok := all[pid][q.ID]
			if !ok || r.Value == nil || r.Value == "" {
				continue
			}
			values = append(values, r.Value)
		}

		agg := QuestionAggregate{Question: questionDTO(q), Count: len(values)}
		switch q.Type {
		case TypeScale:
			st := scaleStats(values)
			agg.Scale = &st
		case TypeChoice:
			agg.Choice = choiceStats(q, values)
		case TypeText:
			for _, v := range values {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					agg.Texts = append(agg.Texts, s)
				}
			}
			agg.Count = len(agg.Texts)
		}
		out = append(out, agg)
	}
	return out
}

func scaleStats(values []any) ScaleStats {
	var st ScaleStats
	if len(values) == 0 {
		return st
	}
	sum := 0
	for _, v := range values {
		n, ok := parseScaleValue(v)
		if !ok || n < 1 || n > 5 {
			continue
		}
		st.Distribution[n-1]++
		sum += n
	}
	st.Average = math.Round(float64(sum)/float64(len(values))*100) / 100
	return st
}

// parseScaleValue coerces the loose store value to an int the way a
// parseInt would: numbers truncate, numeric strings parse by prefix.
func parseScaleValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		trimmed := strings.TrimSpace(n)
		end := 0
		if end < len(trimmed) && (trimmed[end] == '+' || trimmed[end] == '-') {
			end++
		}
		for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
			end++
		}
		i, err := strconv.Atoi(trimmed[:end])
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// choiceStats tallies answers into the question's fixed option set; anything
// outside the set is not counted in any bucket.
func choiceStats(q Question, values []any) map[string]int {
	opts := q.Options
	if len(opts) == 0 {
		opts = defaultChoiceOptions
	}
	counts := make(map[string]int, len(opts))
	for _, o := range opts {
		counts[o] = 0
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, known := counts[s]; known {
			counts[s]++
		}
	}
	return counts
}

// TextPageView is one page of free-text responses for a question.
type TextPageView struct {
	Items       []string `json:"items"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	PageSize    int      `json:"pageSize"`
	TotalItems  int      `json:"totalItems"`
}

// TextPage slices responses into a fixed-size page with the cursor clamped
// into [1, totalPages].
func TextPage(responses []string, page int) TextPageView {
	total := (len(responses) + textPageSize - 1) / textPageSize
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}
	view := TextPageView{
		Items:       []string{},
		CurrentPage: page,
		TotalPages:  total,
		PageSize:    textPageSize,
		TotalItems:  len(responses),
	}
	if total == 0 {
		return view
	}
	start := (page - 1) * textPageSize
	end := start + textPageSize
	if end > len(responses) {
		end = len(responses)
	}
	view.Items = responses[start:end]
	return view
}

// ResultsCache keeps the aggregates hot: it subscribes to the response
// subtree and recomputes eagerly on every change, so the dashboard read is a
// snapshot copy.
type ResultsCache struct {
	mu          sync.RWMutex
	catalog     *Catalog
	aggregates  []QuestionAggregate
	respondents int
	cancel      func()
}

func NewResultsCache(store DocumentStore, catalog *Catalog) *ResultsCache {
	rc := &ResultsCache{catalog: catalog}
	rc.cancel = store.Subscribe(responsesPath, func(raw json.RawMessage) {
		all := map[string]map[string]StoredResponse{}
		if raw != nil {
			if err := json.Unmarshal(raw, &all); err != nil {
				return
			}
		}
		agg := Aggregate(catalog, all)
		rc.mu.Lock()
		rc.aggregates = agg
		rc.respondents = len(all)
		rc.mu.Unlock()
	})
	return rc
}

// Snapshot returns the current aggregates and the respondent count.
func (rc *ResultsCache) Snapshot() ([]QuestionAggregate, int) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.aggregates, rc.respondents
}

// TextsFor returns the raw text responses for one question id.
func (rc *ResultsCache) TextsFor(questionID string) ([]string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	for _, a := range rc.aggregates {
		if a.Question.ID == questionID {
			return a.Texts, true
		}
	}
	return nil, false
}

func (rc *ResultsCache) Close() {
	if rc.cancel != nil {
		rc.cancel()
	}
}
