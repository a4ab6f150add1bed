package screening

import (
	"math"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Risk Model
//
// Pure functions combining direct-match weight, indirect propagation
// with hop decay, and confidence. Kept free of I/O so every score is
// reproducible from its inputs.
//
// Score buckets:
//   LOW      (0-25)
//   MEDIUM   (26-50)
//   HIGH     (51-75)
//   CRITICAL (76-100)

// DirectScore scores a set of direct sanction matches.
// Base 60 for any match, +5 per match capped at +20 when more than one
// entity matched, +15 when any match is OFAC-sourced. Clamped at 80 so
// indirect exposure can still differentiate above it.
func DirectScore(matches []models.SanctionMatch) int {
	if len(matches) == 0 {
		return 0
	}

	score := 60
	if len(matches) > 1 {
		score += min(20, 5*len(matches))
	}
	for _, m := range matches {
		if m.ListSource == models.ListSourceOFAC {
			score += 15
			break
		}
	}
	return min(80, score)
}

// Bucket maps a 0-100 score to its categorical risk level
func Bucket(score int) models.RiskLevel {
	switch {
	case score < 26:
		return models.RiskLow
	case score < 51:
		return models.RiskMedium
	case score < 76:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// HopContribution is the risk contribution of a sanctioned node found
// at the given hop with matchCount matching entities:
//
//	min(100, max(0, 100 - 20*hop) + min(50, 25*matchCount))
//
// Distance decays the base linearly; multiple matching entities add a
// capped bonus so even distant multi-entity nodes stay visible.
func HopContribution(hop, matchCount int) int {
	base := max(0, 100-20*hop)
	bonus := min(50, 25*matchCount)
	return min(100, base+bonus)
}

// RiskPropagation aggregates a walk into a single 0-100 score: a
// hop-weighted average of node contributions plus a capped penalty for
// the number of sanctioned nodes found.
func RiskPropagation(analysis *models.PathAnalysis) int {
	if analysis == nil || len(analysis.PathNodes) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	for _, node := range analysis.PathNodes {
		w := math.Max(0.1, 1.0-0.15*float64(node.Hop))
		weightedSum += float64(node.RiskContribution) * w
		weightTotal += w
	}
	weightedAvg := weightedSum / weightTotal

	nodePenalty := float64(min(25, 5*analysis.SanctionedNodesFound))
	return min(100, int(math.Round(weightedAvg+nodePenalty)))
}

// ConfidenceScore rates how much to trust a screening verdict.
// Direct matches dominate; a completed walk adds coverage credit.
func ConfidenceScore(matches []models.SanctionMatch, analysis *models.PathAnalysis) int {
	score := 0
	if len(matches) > 0 {
		score += 70
		if len(matches) > 1 {
			score += 10
		}
	} else {
		score += 30
	}

	if analysis != nil && analysis.TotalNodesAnalyzed > 0 {
		score += 15
		if analysis.TotalNodesAnalyzed > 10 {
			score += 5
		}
	}

	return min(100, score)
}

// ClampScore bounds a composite score to [0,100]
func ClampScore(score int) int {
	return max(0, min(100, score))
}
