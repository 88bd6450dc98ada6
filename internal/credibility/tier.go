package credibility

import "github.com/kithua/acw/internal/source"

// Tier boundaries are closed on the high side.
const (
	thresholdA = 0.8
	thresholdB = 0.6
	thresholdC = 0.4
)

// TierFromScore maps an overall score to its band.
func TierFromScore(score float64) source.Tier {
	switch {
	case score >= thresholdA:
		return source.TierA
	case score >= thresholdB:
		return source.TierB
	case score >= thresholdC:
		return source.TierC
	default:
		return source.TierD
	}
}
