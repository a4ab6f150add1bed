package screening

import (
	"testing"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

func ofacMatch(entity string) models.SanctionMatch {
	return models.SanctionMatch{
		ListSource:     models.ListSourceOFAC,
		EntityName:     entity,
		EntityID:       entity,
		MatchType:      models.MatchDirect,
		Confidence:     100,
		MatchedAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	}
}

func TestDirectScore(t *testing.T) {
	tests := []struct {
		name    string
		matches []models.SanctionMatch
		want    int
	}{
		{"No Matches", nil, 0},
		{"Single OFAC Match", []models.SanctionMatch{ofacMatch("A")}, 75},
		{"Two OFAC Matches Clamped", []models.SanctionMatch{ofacMatch("A"), ofacMatch("B")}, 80},
		{"Five OFAC Matches Still Clamped", []models.SanctionMatch{
			ofacMatch("A"), ofacMatch("B"), ofacMatch("C"), ofacMatch("D"), ofacMatch("E"),
		}, 80},
		{"Single Non-OFAC Match", []models.SanctionMatch{{
			ListSource: "OTHER", EntityName: "X", MatchType: models.MatchDirect, Confidence: 100,
		}}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectScore(tt.matches); got != tt.want {
				t.Errorf("DirectScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		score int
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{25, models.RiskLow},
		{26, models.RiskMedium},
		{50, models.RiskMedium},
		{51, models.RiskHigh},
		{75, models.RiskHigh},
		{76, models.RiskCritical},
		{100, models.RiskCritical},
	}

	for _, tt := range tests {
		if got := Bucket(tt.score); got != tt.want {
			t.Errorf("Bucket(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestHopContribution(t *testing.T) {
	tests := []struct {
		name       string
		hop        int
		matchCount int
		want       int
	}{
		{"Hop 1 Single Match", 1, 1, 100}, // 80 + 25, capped at 100
		{"Hop 2 Single Match", 2, 1, 85},  // 60 + 25
		{"Hop 3 Single Match", 3, 1, 65},  // 40 + 25
		{"Hop 5 Single Match", 5, 1, 25},  // 0 + 25
		{"Hop 6 Decay Floor", 6, 1, 25},   // base clamps at 0
		{"Hop 3 Three Matches Bonus Cap", 3, 3, 90}, // 40 + min(50,75)
		{"Hop 1 Many Matches Cap", 1, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HopContribution(tt.hop, tt.matchCount); got != tt.want {
				t.Errorf("HopContribution(%d, %d) = %d, want %d", tt.hop, tt.matchCount, got, tt.want)
			}
		})
	}
}

func TestRiskPropagation(t *testing.T) {
	t.Run("Nil Analysis", func(t *testing.T) {
		if got := RiskPropagation(nil); got != 0 {
			t.Errorf("RiskPropagation(nil) = %d, want 0", got)
		}
	})

	t.Run("Empty Walk", func(t *testing.T) {
		analysis := &models.PathAnalysis{TargetAddress: "bc1q_target", MaxHops: 5}
		if got := RiskPropagation(analysis); got != 0 {
			t.Errorf("RiskPropagation(empty) = %d, want 0", got)
		}
	})

	t.Run("Single Hop-2 Node", func(t *testing.T) {
		// One node at hop 2 with contribution 60: weighted avg is 60
		// regardless of the weight, plus the 5-point node penalty.
		analysis := &models.PathAnalysis{
			TargetAddress:        "bc1q_target",
			MaxHops:              5,
			SanctionedNodesFound: 1,
			PathNodes: []models.PathNode{
				{Address: "1sanctioned", Hop: 2, RiskContribution: 60},
			},
		}
		if got := RiskPropagation(analysis); got != 65 {
			t.Errorf("RiskPropagation() = %d, want 65", got)
		}
	})

	t.Run("Node Penalty Caps At 25", func(t *testing.T) {
		nodes := make([]models.PathNode, 8)
		for i := range nodes {
			nodes[i] = models.PathNode{Hop: 1, RiskContribution: 50}
		}
		analysis := &models.PathAnalysis{
			SanctionedNodesFound: 8,
			PathNodes:            nodes,
		}
		// Weighted avg 50 + min(25, 40) = 75
		if got := RiskPropagation(analysis); got != 75 {
			t.Errorf("RiskPropagation() = %d, want 75", got)
		}
	})

	t.Run("Clamped At 100", func(t *testing.T) {
		analysis := &models.PathAnalysis{
			SanctionedNodesFound: 5,
			PathNodes: []models.PathNode{
				{Hop: 1, RiskContribution: 100},
				{Hop: 1, RiskContribution: 100},
				{Hop: 1, RiskContribution: 100},
				{Hop: 1, RiskContribution: 100},
				{Hop: 1, RiskContribution: 100},
			},
		}
		if got := RiskPropagation(analysis); got != 100 {
			t.Errorf("RiskPropagation() = %d, want 100", got)
		}
	})
}

func TestConfidenceScore(t *testing.T) {
	oneMatch := []models.SanctionMatch{ofacMatch("A")}
	twoMatches := []models.SanctionMatch{ofacMatch("A"), ofacMatch("B")}

	tests := []struct {
		name     string
		matches  []models.SanctionMatch
		analysis *models.PathAnalysis
		want     int
	}{
		{"No Evidence", nil, nil, 30},
		{"Direct Match Only", oneMatch, nil, 70},
		{"Multiple Matches", twoMatches, nil, 80},
		{"No Match With Small Walk", nil, &models.PathAnalysis{TotalNodesAnalyzed: 5}, 45},
		{"No Match With Deep Walk", nil, &models.PathAnalysis{TotalNodesAnalyzed: 25}, 50},
		{"Match Plus Deep Walk", oneMatch, &models.PathAnalysis{TotalNodesAnalyzed: 25}, 90},
		{"Everything Capped", twoMatches, &models.PathAnalysis{TotalNodesAnalyzed: 25}, 100},
		{"Empty Walk Adds Nothing", oneMatch, &models.PathAnalysis{TotalNodesAnalyzed: 0}, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfidenceScore(tt.matches, tt.analysis); got != tt.want {
				t.Errorf("ConfidenceScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
