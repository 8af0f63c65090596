package metrics

import (
	"math"
	"sort"

	"github.com/sells-group/geo-benchmark/internal/model"
)

type acc struct {
	rows      int
	mentioned int
	wins      int
	posSum    float64
	posN      int
	sentSum   float64
	sentN     int
	cites     int
	primary   int
	secondary int
}

func (a *acc) add(m model.DailyMetric) {
	a.rows++
	if m.IsMentioned {
		a.mentioned++
	}
	if m.IsWinner {
		a.wins++
	}
	if m.FirstMentionPosition != nil {
		a.posSum += float64(*m.FirstMentionPosition)
		a.posN++
	}
	if m.AvgSentimentScore != nil {
		a.sentSum += *m.AvgSentimentScore
		a.sentN++
	}
	a.cites += m.CitationCount
	a.primary += m.PrimaryCitationCount
	a.secondary += m.SecondaryCitationCount
}

func (a *acc) sov() float64     { return pct(a.mentioned, a.rows) }
func (a *acc) winRate() float64 { return pct(a.wins, a.rows) }

func (a *acc) avgPosition() *float64 {
	if a.posN == 0 {
		return nil
	}
	v := round(a.posSum/float64(a.posN), 2)
	return &v
}

func (a *acc) avgSentiment() *float64 {
	if a.sentN == 0 {
		return nil
	}
	v := round(a.sentSum/float64(a.sentN), 3)
	return &v
}

// ShareOfVoice summarizes one run's rows per brand, in the given brand order.
// Brands absent from rows are omitted.
func ShareOfVoice(rows []model.DailyMetric, brandOrder []string) []model.BrandSummary {
	by := make(map[string]*acc)
	for _, m := range rows {
		a, ok := by[m.Brand]
		if !ok {
			a = &acc{}
			by[m.Brand] = a
		}
		a.add(m)
	}

	out := make([]model.BrandSummary, 0, len(by))
	for _, b := range orderedKeys(by, brandOrder) {
		a := by[b]
		out = append(out, model.BrandSummary{
			Brand:        b,
			SOV:          a.sov(),
			AvgPosition:  a.avgPosition(),
			AvgSentiment: a.avgSentiment(),
			WinRate:      a.winRate(),
		})
	}
	return out
}

// Trends aggregates rows per (run date, brand), ordered by date then brand order.
func Trends(rows []model.DailyMetric, brandOrder []string) []model.TrendPoint {
	type key struct{ date, brand string }
	by := make(map[key]*acc)
	dates := make(map[string]bool)
	for _, m := range rows {
		k := key{m.RunDate, m.Brand}
		a, ok := by[k]
		if !ok {
			a = &acc{}
			by[k] = a
		}
		a.add(m)
		dates[m.RunDate] = true
	}

	sortedDates := make([]string, 0, len(dates))
	for d := range dates {
		sortedDates = append(sortedDates, d)
	}
	sort.Strings(sortedDates)

	var out []model.TrendPoint
	for _, d := range sortedDates {
		perDate := make(map[string]*acc)
		for k, a := range by {
			if k.date == d {
				perDate[k.brand] = a
			}
		}
		for _, b := range orderedKeys(perDate, brandOrder) {
			a := perDate[b]
			out = append(out, model.TrendPoint{
				Date:               d,
				Brand:              b,
				SOV:                a.sov(),
				AvgPosition:        a.avgPosition(),
				AvgSentiment:       a.avgSentiment(),
				WinRate:            a.winRate(),
				Citations:          a.cites,
				PrimaryCitations:   a.primary,
				SecondaryCitations: a.secondary,
			})
		}
	}
	return out
}

// Breakdown joins rows with their query text, ordered by query id then brand order.
func Breakdown(rows []model.DailyMetric, queries map[int64]model.Query, brandOrder []string) []model.TermBreakdownRow {
	rank := make(map[string]int, len(brandOrder))
	for i, b := range brandOrder {
		rank[b] = i
	}
	out := make([]model.TermBreakdownRow, 0, len(rows))
	for _, m := range rows {
		q := queries[m.QueryID]
		out = append(out, model.TermBreakdownRow{
			QueryID:                 m.QueryID,
			QueryText:               q.Text,
			Category:                m.QueryCategory,
			Brand:                   m.Brand,
			IsMentioned:             m.IsMentioned,
			FirstMentionPosition:    m.FirstMentionPosition,
			AvgSentimentScore:       m.AvgSentimentScore,
			IsPrimaryRecommendation: m.IsPrimaryRecommendation,
			IsWinner:                m.IsWinner,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QueryID != out[j].QueryID {
			return out[i].QueryID < out[j].QueryID
		}
		ri, iok := rank[out[i].Brand]
		rj, jok := rank[out[j].Brand]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return out[i].Brand < out[j].Brand
	})
	return out
}

func orderedKeys[V any](m map[string]V, order []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round(float64(n)/float64(d)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
