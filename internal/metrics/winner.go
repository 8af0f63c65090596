package metrics

import "github.com/sells-group/geo-benchmark/internal/model"

// Score ranks a mentioned brand within its group:
// 100 for a primary recommendation, 10/first position, 5 x average sentiment.
func Score(m model.DailyMetric) float64 {
	var s float64
	if m.IsPrimaryRecommendation {
		s += 100
	}
	if m.FirstMentionPosition != nil && *m.FirstMentionPosition > 0 {
		s += 10 / float64(*m.FirstMentionPosition)
	}
	if m.AvgSentimentScore != nil {
		s += 5 * *m.AvgSentimentScore
	}
	return s
}

// MarkWinners sets IsWinner on the best mentioned row of every
// (query, provider) group and clears it everywhere else. Equal scores go to
// the alphabetically first brand key.
func MarkWinners(rows []model.DailyMetric) {
	best := make(map[model.WorkKey]int)
	for i := range rows {
		rows[i].IsWinner = false
		if !rows[i].IsMentioned {
			continue
		}
		key := rows[i].GroupKey()
		j, ok := best[key]
		if !ok {
			best[key] = i
			continue
		}
		si, sj := Score(rows[i]), Score(rows[j])
		if si > sj || (si == sj && rows[i].Brand < rows[j].Brand) {
			best[key] = i
		}
	}
	for _, i := range best {
		rows[i].IsWinner = true
	}
}
