package retrieval

import (
	"strings"

	"github.com/siherrmann/raglite/model"
)

// Estimator computes a heuristic confidence score for an answer.
// The score is a weighted sum of source coverage, question/source word
// overlap, answer length and question keyword presence in the answer, plus a
// bonus for methods that expand the query with a hypothetical answer.
// Scores are clamped to [Floor, Ceiling]; an answer without sources gets
// exactly Floor. The exact 0.0 for failed answers is set by the caller at the
// failure boundary, never here.
type Estimator struct {
	TopK int

	DocWeight     float64
	OverlapWeight float64
	LengthWeight  float64
	KeywordWeight float64
	HydeBonus     float64
	Floor         float64
	Ceiling       float64
}

// NewEstimator creates an estimator with the default weights
func NewEstimator(topK int) *Estimator {
	if topK <= 0 {
		topK = model.DefaultQueryConfig().TopK
	}

	return &Estimator{
		TopK:          topK,
		DocWeight:     0.3,
		OverlapWeight: 0.3,
		LengthWeight:  0.2,
		KeywordWeight: 0.1,
		HydeBonus:     0.1,
		Floor:         0.1,
		Ceiling:       0.95,
	}
}

// Estimate scores the answer for the question given its source chunks
func (e *Estimator) Estimate(question string, answer string, sources []*model.Chunk, method model.RetrievalMethod) float64 {
	if len(sources) == 0 {
		return e.Floor
	}

	docScore := capAt1(float64(len(sources))/float64(e.TopK)) * e.DocWeight

	questionWords := fieldSet(question)

	// Average word overlap between the question and each source
	overlapSum := 0.0
	for _, source := range sources {
		overlapSum += jaccard(questionWords, fieldSet(source.Content))
	}
	overlapScore := capAt1(overlapSum/float64(len(sources))) * e.OverlapWeight

	// Longer answers score higher, saturating at 50 words
	lengthScore := capAt1(float64(len(strings.Fields(answer)))/50.0) * e.LengthWeight

	// Share of question keywords that appear in the answer
	answerLower := strings.ToLower(answer)
	keywordHits := 0
	for word := range questionWords {
		if len(word) > 2 && strings.Contains(answerLower, word) {
			keywordHits++
		}
	}
	keywordScore := capAt1(float64(keywordHits)/float64(max(len(questionWords), 1))) * e.KeywordWeight

	bonus := 0.0
	if method.UsesHyde() {
		bonus = e.HydeBonus
	}

	confidence := docScore + overlapScore + lengthScore + keywordScore + bonus

	if confidence < e.Floor {
		return e.Floor
	}
	if confidence > e.Ceiling {
		return e.Ceiling
	}
	return confidence
}

func fieldSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection

	return float64(intersection) / float64(union)
}

func capAt1(value float64) float64 {
	if value > 1.0 {
		return 1.0
	}
	return value
}
