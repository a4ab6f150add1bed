package screening

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/rawblock/sanctions-screener/internal/audit"
	"github.com/rawblock/sanctions-screener/internal/validation"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Transaction Screener
//
// Resolves a transaction to its input/output address set and fans out
// to the address screener with graph walking disabled — screening a
// transaction never recurses into the graph, only the per-address
// screen does when explicitly requested.
//
// The overall verdict is a confidence-weighted average of per-address
// scores plus a capped penalty for HIGH/CRITICAL participants.

const (
	// txScreenMaxHops is passed through to the address screener even
	// though walking is disabled; reserved for a deep-screen mode.
	txScreenMaxHops = 3

	highRiskPenaltyStep = 10
	highRiskPenaltyCap  = 25
)

// TransactionScreener screens single transactions and batches
type TransactionScreener struct {
	indexer  Indexer
	address  *AddressScreener
	auditLog *audit.Log
}

// NewTransactionScreener wires the screener. auditLog may be nil.
func NewTransactionScreener(idx Indexer, address *AddressScreener, auditLog *audit.Log) *TransactionScreener {
	return &TransactionScreener{indexer: idx, address: address, auditLog: auditLog}
}

// Screen validates txHash, fetches the transaction, screens every
// address on the requested side(s), and aggregates the verdicts.
func (s *TransactionScreener) Screen(ctx context.Context, txHash, direction string, includeMetadata bool, correlationID string) (*models.TxScreeningResult, error) {
	start := time.Now()

	if !validation.IsValidTxHash(txHash) {
		err := models.NewError(models.ErrValidation, "invalid transaction hash format: %q", txHash)
		s.record(txHash, nil, correlationID, time.Since(start), err)
		return nil, err
	}
	dir, err := validation.NormalizeDirection(direction)
	if err != nil {
		s.record(txHash, nil, correlationID, time.Since(start), err)
		return nil, err
	}

	tx, err := s.indexer.GetTransaction(ctx, txHash)
	if err != nil {
		s.record(txHash, nil, correlationID, time.Since(start), err)
		return nil, err
	}

	addrs := addressesForDirection(tx, dir)

	var (
		results    []models.ScreeningResult
		allMatches []models.SanctionMatch
		screened   int
	)
	for _, addr := range addrs {
		r, err := s.address.Screen(ctx, addr, false, txScreenMaxHops, correlationID)
		if err != nil {
			log.Printf("[TxScreener] address %s in %s failed: %v", addr, txHash, err)
			continue
		}
		screened++
		results = append(results, *r)
		allMatches = append(allMatches, r.SanctionMatches...)
	}

	overall := aggregateRisk(results)
	result := &models.TxScreeningResult{
		TxHash:            tx.Txid,
		Direction:         dir,
		TotalAddresses:    len(addrs),
		AddressesScreened: screened,
		AddressResults:    results,
		OverallRiskScore:  overall,
		OverallRiskLevel:  Bucket(overall),
		SanctionMatches:   allMatches,
		Confidence:        aggregateConfidence(results, len(addrs)),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}
	if includeMetadata {
		result.Transaction = tx
	}
	if result.SanctionMatches == nil {
		result.SanctionMatches = []models.SanctionMatch{}
	}
	if result.AddressResults == nil {
		result.AddressResults = []models.ScreeningResult{}
	}

	s.record(txHash, map[string]any{
		"overallRiskScore": result.OverallRiskScore,
		"overallRiskLevel": string(result.OverallRiskLevel),
		"totalAddresses":   result.TotalAddresses,
		"screened":         result.AddressesScreened,
		"matches":          len(result.SanctionMatches),
	}, correlationID, time.Since(start), nil)

	return result, nil
}

// ScreenBatch screens transactions sequentially to respect indexer
// limits; a per-tx failure is logged and skipped.
func (s *TransactionScreener) ScreenBatch(ctx context.Context, txHashes []string, direction string, correlationID string) []models.TxScreeningResult {
	var out []models.TxScreeningResult
	for _, h := range txHashes {
		if err := ctx.Err(); err != nil {
			log.Printf("[TxScreener] batch cancelled after %d of %d", len(out), len(txHashes))
			break
		}
		r, err := s.Screen(ctx, h, direction, false, correlationID)
		if err != nil {
			log.Printf("[TxScreener] skipping tx %s: %v", h, err)
			continue
		}
		out = append(out, *r)
	}
	return out
}

func (s *TransactionScreener) record(txHash string, bag map[string]any, correlationID string, elapsed time.Duration, cause error) {
	if s.auditLog == nil {
		return
	}
	entry := models.AuditEntry{
		Action:           "screen_transaction",
		Subject:          "tx:" + txHash,
		TxHash:           txHash,
		Result:           bag,
		CorrelationID:    correlationID,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Success:          cause == nil,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	s.auditLog.Record(entry)
}

// addressesForDirection returns the deduplicated address set of the
// requested transaction side(s), first-seen order.
func addressesForDirection(tx *models.Transaction, dir string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addrs []string) {
		for _, a := range addrs {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	if dir == "inputs" || dir == "both" {
		for _, in := range tx.Inputs {
			add(in.Addresses)
		}
	}
	if dir == "outputs" || dir == "both" {
		for _, o := range tx.Outputs {
			add(o.Addresses)
		}
	}
	return out
}

// aggregateRisk computes the overall score: the average per-address
// risk weighted by max(1, matches)·(confidence/100), plus 10 points
// per HIGH/CRITICAL participant capped at 25.
func aggregateRisk(results []models.ScreeningResult) int {
	if len(results) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	highCount := 0
	for _, r := range results {
		w := math.Max(1, float64(len(r.SanctionMatches))) * float64(r.Confidence) / 100.0
		weightedSum += float64(r.RiskScore) * w
		weightTotal += w
		if r.RiskLevel == models.RiskHigh || r.RiskLevel == models.RiskCritical {
			highCount++
		}
	}

	avgWeighted := 0.0
	if weightTotal > 0 {
		avgWeighted = weightedSum / weightTotal
	}
	penalty := float64(min(highRiskPenaltyCap, highRiskPenaltyStep*highCount))
	return ClampScore(int(math.Round(avgWeighted + penalty)))
}

// aggregateConfidence blends screening completeness with the average
// per-result confidence: min(100, 60 + 20·completeness + 20·avgConf/100).
func aggregateConfidence(results []models.ScreeningResult, totalAddresses int) int {
	completeness := 1.0
	if totalAddresses > 0 {
		completeness = float64(len(results)) / float64(totalAddresses)
	}

	avgConf := 0.0
	if len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += float64(r.Confidence)
		}
		avgConf = sum / float64(len(results))
	}

	return min(100, int(math.Round(60+20*completeness+20*avgConf/100)))
}
