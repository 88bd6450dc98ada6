package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

func newClassifier() *Classifier {
	return New(rules.Defaults())
}

func TestNoOverlapFallsBackToCyber(t *testing.T) {
	c := newClassifier()

	r := c.Classify("the quick brown fox")
	assert.Equal(t, source.PillarCyber, r.Pillar)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, source.PillarCyber, c.Pillar(""))
}

func TestClassifyPicksHighestOverlap(t *testing.T) {
	c := newClassifier()

	tests := []struct {
		text string
		want source.Pillar
	}{
		{"Jihadist militants claim bombing in northern Mali", source.PillarTerrorism},
		{"Police seize cocaine shipment, arrest traffickers at port", source.PillarOrganised},
		{"Regulator warns of Ponzi scam promising bitcoin returns", source.PillarFinancial},
		{"Ransomware gang leaks data after phishing breach", source.PillarCyber},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Pillar(tt.text), tt.text)
	}
}

func TestClassifyIsCaseAndPunctuationInsensitive(t *testing.T) {
	c := newClassifier()

	r := c.Classify("AL-SHABAAB ATTACK: Militants, Bomb!")
	assert.Equal(t, source.PillarTerrorism, r.Pillar)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, 4, r.Overlap[source.PillarTerrorism])
}

func TestTieFallsBackToCyber(t *testing.T) {
	c := newClassifier()

	r := c.Classify("fraud and cocaine")
	assert.Equal(t, 1, r.Overlap[source.PillarFinancial])
	assert.Equal(t, 1, r.Overlap[source.PillarOrganised])
	assert.Equal(t, source.PillarCyber, r.Pillar)
}

func TestConfidenceScalesWithOverlap(t *testing.T) {
	c := newClassifier()

	assert.InDelta(t, 1.0/3, c.Classify("a ransom demand").Confidence, 1e-9)
	assert.InDelta(t, 2.0/3, c.Classify("kidnapping for ransom").Confidence, 1e-9)
}

func TestRepeatedKeywordCountsOnce(t *testing.T) {
	c := newClassifier()

	r := c.Classify("malware malware malware")
	assert.Equal(t, 1, r.Overlap[source.PillarCyber])
}

func TestClassifyItemUsesSummary(t *testing.T) {
	c := newClassifier()

	r := c.ClassifyItem(source.Item{Title: "Court update", Summary: "Former minister convicted of embezzlement and bribery"})
	assert.Equal(t, source.PillarFinancial, r.Pillar)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := newClassifier()
	text := "hackers used a botnet for ddos and extortion"
	first := c.Classify(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify(text))
	}
}
