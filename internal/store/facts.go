package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// factIndex assembles per-response facts from the three fact tables.
type factIndex struct {
	order []int64
	byID  map[int64]*model.ResponseFacts
}

func newFactIndex() *factIndex {
	return &factIndex{byID: make(map[int64]*model.ResponseFacts)}
}

func (f *factIndex) addResponse(row scannable) error {
	var rf model.ResponseFacts
	var provider string
	if err := row.Scan(&rf.ResponseID, &rf.QueryID, &rf.QueryCategory, &provider); err != nil {
		return eris.Wrap(err, "store: scan response facts")
	}
	rf.Provider = model.Provider(provider)
	rf.Mentions = []model.Mention{}
	rf.Citations = []model.Citation{}
	f.order = append(f.order, rf.ResponseID)
	f.byID[rf.ResponseID] = &rf
	return nil
}

func (f *factIndex) addMention(row scannable) error {
	var m model.Mention
	var score *float64
	if err := row.Scan(&m.ResponseID, &m.Brand, &m.Position, &m.Context, &m.Sentiment, &score, &m.IsPrimary); err != nil {
		return eris.Wrap(err, "store: scan mention")
	}
	m.SentimentScore = score
	if rf, ok := f.byID[m.ResponseID]; ok {
		rf.Mentions = append(rf.Mentions, m)
	}
	return nil
}

func (f *factIndex) addCitation(row scannable) error {
	var c model.Citation
	if err := row.Scan(&c.ResponseID, &c.URL, &c.Title, &c.Domain, &c.Brand, &c.IsPrimaryDomain, &c.IsSecondaryDomain); err != nil {
		return eris.Wrap(err, "store: scan citation")
	}
	if rf, ok := f.byID[c.ResponseID]; ok {
		rf.Citations = append(rf.Citations, c)
	}
	return nil
}

func (f *factIndex) facts() []model.ResponseFacts {
	out := make([]model.ResponseFacts, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.byID[id])
	}
	return out
}

func encodeMetadata(md model.ResponseMetadata) (string, error) {
	b, err := json.Marshal(md)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal response metadata")
	}
	return string(b), nil
}

func decodeMetadata(raw string) (model.ResponseMetadata, error) {
	var md model.ResponseMetadata
	if raw == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return md, eris.Wrap(err, "store: unmarshal response metadata")
	}
	return md, nil
}

func scanMetric(row scannable) (model.DailyMetric, error) {
	var m model.DailyMetric
	var provider string
	err := row.Scan(&m.ID, &m.RunDate, &m.RunID, &m.QueryID, &m.QueryCategory, &provider, &m.Brand,
		&m.IsMentioned, &m.MentionCount, &m.FirstMentionPosition,
		&m.IsPrimaryRecommendation, &m.AvgSentimentScore, &m.DominantSentiment,
		&m.CitationCount, &m.PrimaryCitationCount, &m.SecondaryCitationCount, &m.IsWinner)
	if err != nil {
		return m, eris.Wrap(err, "store: scan daily metric")
	}
	m.Provider = model.Provider(provider)
	return m, nil
}
