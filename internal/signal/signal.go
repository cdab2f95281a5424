// Package signal turns one collected document into normalized signals:
// a sentiment score in [-1,1] and a set of topic tags. Extraction is a
// pure function of the document text so identical input always yields
// identical signals, which the orchestrator relies on for idempotent
// re-runs.
package signal

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/compintel/compradar/internal/model"
)

// Extractor is the pluggable signal extraction strategy.
type Extractor interface {
	Extract(doc model.Document) model.Signals
}

// LexiconExtractor scores sentiment from word lists and tags topics from
// keyword matches. It holds no mutable state.
type LexiconExtractor struct{}

// NewLexiconExtractor returns the default extractor.
func NewLexiconExtractor() *LexiconExtractor {
	return &LexiconExtractor{}
}

var _ Extractor = (*LexiconExtractor)(nil)

// Extract implements Extractor. Title words count like body words; a
// negator directly before a sentiment word flips its polarity.
func (e *LexiconExtractor) Extract(doc model.Document) model.Signals {
	words := tokenize(doc.Title + " " + doc.Body)

	var pos, neg int
	for i, w := range words {
		score, ok := sentimentLexicon[w]
		if !ok {
			continue
		}
		if i > 0 && negators[words[i-1]] {
			score = -score
		}
		if score > 0 {
			pos++
		} else {
			neg++
		}
	}

	var sentiment float64
	if hits := pos + neg; hits > 0 {
		sentiment = float64(pos-neg) / float64(hits)
	}
	sentiment = clamp(sentiment, -1, 1)

	topicSet := map[string]bool{}
	for _, w := range words {
		if topic, ok := topicKeywords[w]; ok {
			topicSet[topic] = true
		}
	}
	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	return model.Signals{Sentiment: sentiment, Topics: topics}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
