package screening

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/rawblock/sanctions-screener/internal/audit"
	"github.com/rawblock/sanctions-screener/internal/validation"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Address Screener
//
// Combines direct sanctions matching with optional graph-walk output
// into a single ScreeningResult. The walker is best-effort: when it
// fails, the screening still succeeds on direct evidence alone and the
// failure is recorded in the audit entry's result bag.

const (
	// indirectWeight scales the walker's riskPropagation into the
	// composite score.
	indirectWeight = 0.6

	bulkChunkSize     = 10
	bulkChunkPause    = 100 * time.Millisecond
	bulkInvalidLogCap = 5

	// DefaultMaxHops applies when a caller requests a walk without a depth
	DefaultMaxHops = 5
)

// AddressScreener screens single addresses and batches
type AddressScreener struct {
	sanctions      SanctionsLookup
	walker         *Walker
	auditLog       *audit.Log
	defaultMaxHops int
}

// NewAddressScreener wires the screener. auditLog may be nil (tests).
func NewAddressScreener(sanctions SanctionsLookup, walker *Walker, auditLog *audit.Log, defaultMaxHops int) *AddressScreener {
	if defaultMaxHops <= 0 || defaultMaxHops > MaxHopLimit {
		defaultMaxHops = DefaultMaxHops
	}
	return &AddressScreener{
		sanctions:      sanctions,
		walker:         walker,
		auditLog:       auditLog,
		defaultMaxHops: defaultMaxHops,
	}
}

// Screen validates addr, matches it against the sanctions index,
// optionally walks the transaction graph, and emits the result plus an
// audit entry. maxHops is clamped to [1,10]; 0 selects the default.
func (s *AddressScreener) Screen(ctx context.Context, addr string, includeWalk bool, maxHops int, correlationID string) (*models.ScreeningResult, error) {
	start := time.Now()

	if !validation.IsValidAddress(addr) {
		err := models.NewError(models.ErrValidation, "invalid Bitcoin address format: %q", addr)
		s.record("screen_address", addr, "", nil, correlationID, time.Since(start), err)
		return nil, err
	}

	entities, err := s.sanctions.FindByAddress(addr)
	if err != nil {
		s.record("screen_address", addr, "", nil, correlationID, time.Since(start), err)
		return nil, err
	}
	matches := directMatches(entities, addr)
	score := DirectScore(matches)

	var (
		analysis  *models.PathAnalysis
		walkError string
	)
	if includeWalk {
		hops := maxHops
		if hops <= 0 {
			hops = s.defaultMaxHops
		}
		if hops > MaxHopLimit {
			hops = MaxHopLimit
		}
		analysis, err = s.walker.Analyze(ctx, addr, hops)
		if err != nil {
			// Degrade to direct evidence only; the request still succeeds.
			log.Printf("[Screener] walk failed for %s: %v", addr, err)
			walkError = err.Error()
			analysis = nil
		} else {
			score = int(math.Round(float64(score) + indirectWeight*float64(analysis.RiskPropagation)))
		}
	}

	score = ClampScore(score)
	result := &models.ScreeningResult{
		Address:          addr,
		RiskScore:        score,
		RiskLevel:        Bucket(score),
		SanctionMatches:  matches,
		PathAnalysis:     analysis,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Confidence:       ConfidenceScore(matches, analysis),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	bag := map[string]any{
		"riskScore":  result.RiskScore,
		"riskLevel":  string(result.RiskLevel),
		"matches":    len(matches),
		"confidence": result.Confidence,
	}
	if walkError != "" {
		bag["walkError"] = walkError
	}
	if analysis != nil {
		bag["sanctionedNodesFound"] = analysis.SanctionedNodesFound
	}
	s.record("screen_address", addr, "", bag, correlationID, time.Since(start), nil)

	return result, nil
}

// ScreenBatch screens addresses in concurrent chunks of 10 with a
// 100 ms pause between chunks. Invalid inputs are dropped (first 5
// logged); a per-address failure yields a zero-score LOW stub so the
// output length equals the valid-input length.
func (s *AddressScreener) ScreenBatch(ctx context.Context, addrs []string, includeWalk bool, maxHops int, correlationID string) ([]models.ScreeningResult, error) {
	start := time.Now()

	var valid, invalid []string
	for _, a := range addrs {
		if validation.IsValidAddress(a) {
			valid = append(valid, a)
		} else {
			invalid = append(invalid, a)
		}
	}
	for i, a := range invalid {
		if i >= bulkInvalidLogCap {
			log.Printf("[Screener] ... %d more invalid addresses suppressed", len(invalid)-bulkInvalidLogCap)
			break
		}
		log.Printf("[Screener] dropping invalid address in batch: %q", a)
	}

	results := make([]models.ScreeningResult, len(valid))
	for chunkStart := 0; chunkStart < len(valid); chunkStart += bulkChunkSize {
		chunkEnd := min(chunkStart+bulkChunkSize, len(valid))

		var wg sync.WaitGroup
		for i := chunkStart; i < chunkEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				r, err := s.Screen(ctx, valid[idx], includeWalk, maxHops, correlationID)
				if err != nil {
					log.Printf("[Screener] batch item %s failed: %v", valid[idx], err)
					results[idx] = stubResult(valid[idx])
					return
				}
				results[idx] = *r
			}(i)
		}
		wg.Wait()

		if chunkEnd < len(valid) {
			select {
			case <-ctx.Done():
				return results[:chunkEnd], models.WrapError(models.ErrInternal, ctx.Err(), "batch cancelled")
			case <-time.After(bulkChunkPause):
			}
		}
	}

	s.record("screen_address_bulk", fmt.Sprintf("bulk_%d_items", len(addrs)), "", map[string]any{
		"requested": len(addrs),
		"screened":  len(valid),
		"invalid":   len(invalid),
	}, correlationID, time.Since(start), nil)

	return results, nil
}

// record writes the audit entry; failures never reach the caller
func (s *AddressScreener) record(action, subject, txHash string, bag map[string]any, correlationID string, elapsed time.Duration, cause error) {
	if s.auditLog == nil {
		return
	}
	entry := models.AuditEntry{
		Action:           action,
		Subject:          subject,
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

// directMatches maps index hits into DIRECT sanction matches
func directMatches(entities []*models.SanctionEntity, addr string) []models.SanctionMatch {
	matches := make([]models.SanctionMatch, 0, len(entities))
	for _, e := range entities {
		matches = append(matches, models.SanctionMatch{
			ListSource:     e.ListSource,
			EntityName:     e.Name,
			EntityID:       e.EntityID,
			MatchType:      models.MatchDirect,
			Confidence:     100,
			MatchedAddress: addr,
		})
	}
	return matches
}

// stubResult is the placeholder for a batch item that failed screening
func stubResult(addr string) models.ScreeningResult {
	return models.ScreeningResult{
		Address:         addr,
		RiskScore:       0,
		RiskLevel:       models.RiskLow,
		SanctionMatches: []models.SanctionMatch{},
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Confidence:      0,
	}
}
