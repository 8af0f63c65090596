// Package metrics turns stored response facts into per-brand daily metrics,
// selects one winner per (query, provider) group, and summarizes metric rows
// into the aggregate views.
package metrics

import (
	"sort"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/model"
)

// Compute builds one row per (response, tracked brand) and marks winners.
// Rows are ordered by query, provider, then registry brand order.
func Compute(runID int64, runDate string, facts []model.ResponseFacts, reg *brand.Registry) []model.DailyMetric {
	defs := reg.Definitions()
	rows := make([]model.DailyMetric, 0, len(facts)*len(defs))

	sorted := make([]model.ResponseFacts, len(facts))
	copy(sorted, facts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].QueryID != sorted[j].QueryID {
			return sorted[i].QueryID < sorted[j].QueryID
		}
		return sorted[i].Provider < sorted[j].Provider
	})

	for _, f := range sorted {
		for _, d := range defs {
			rows = append(rows, row(runID, runDate, f, d))
		}
	}
	MarkWinners(rows)
	return rows
}

func row(runID int64, runDate string, f model.ResponseFacts, d brand.Definition) model.DailyMetric {
	m := model.DailyMetric{
		RunDate:       runDate,
		RunID:         runID,
		QueryID:       f.QueryID,
		QueryCategory: f.QueryCategory,
		Provider:      f.Provider,
		Brand:         d.Key,
	}

	var mentions []model.Mention
	for _, mn := range f.Mentions {
		if mn.Brand == d.Key {
			mentions = append(mentions, mn)
		}
	}
	if len(mentions) > 0 {
		m.IsMentioned = true
		m.MentionCount = len(mentions)

		first := mentions[0].Position
		var sum float64
		var scored int
		for _, mn := range mentions {
			if mn.Position < first {
				first = mn.Position
			}
			if mn.IsPrimary {
				m.IsPrimaryRecommendation = true
			}
			if mn.SentimentScore != nil {
				sum += *mn.SentimentScore
				scored++
			}
		}
		m.FirstMentionPosition = &first

		avg := 0.0
		if scored > 0 {
			avg = sum / float64(scored)
		}
		m.AvgSentimentScore = &avg

		dominant := DominantSentiment(mentions)
		m.DominantSentiment = &dominant
	}

	for _, c := range f.Citations {
		if c.Brand != d.Key {
			continue
		}
		m.CitationCount++
		if d.DualDomain() {
			if c.IsPrimaryDomain {
				m.PrimaryCitationCount++
			}
			if c.IsSecondaryDomain {
				m.SecondaryCitationCount++
			}
		}
	}
	return m
}

// DominantSentiment returns the most frequent sentiment label. Ties go to
// the label of the earliest-positioned mention, then alphabetical order.
func DominantSentiment(mentions []model.Mention) string {
	type tally struct {
		count    int
		earliest int
	}
	tallies := make(map[string]*tally)
	for _, mn := range mentions {
		t, ok := tallies[mn.Sentiment]
		if !ok {
			tallies[mn.Sentiment] = &tally{count: 1, earliest: mn.Position}
			continue
		}
		t.count++
		if mn.Position < t.earliest {
			t.earliest = mn.Position
		}
	}

	best := ""
	var bt *tally
	for label, t := range tallies {
		switch {
		case bt == nil,
			t.count > bt.count,
			t.count == bt.count && t.earliest < bt.earliest,
			t.count == bt.count && t.earliest == bt.earliest && label < best:
			best, bt = label, t
		}
	}
	return best
}
