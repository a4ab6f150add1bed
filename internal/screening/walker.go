package screening

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rawblock/sanctions-screener/internal/indexer"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Path Walker — Bounded Transaction-Graph Traversal
//
// From a target address, discovers sanctioned addresses reachable
// within maxHops through the transaction graph using breadth-first
// expansion against a rate-limited indexer:
//
//   1. Seed with up to 25 recent txids of the target.
//   2. Per hop, take the first 10 queued txids and fetch them with at
//      most 5 requests in flight; path nodes append in completion order.
//   3. Every unvisited address in a fetched tx is checked against the
//      sanctions index; hits become PathNodes with a hop-decayed
//      contribution.
//   4. The first 3 unvisited addresses per tx are expanded: 5 recent
//      txids each feed the next hop's queue.
//
// Sub-fetch failures are logged and skipped; a walk that gets past its
// seed fetch always returns a well-formed PathAnalysis, at worst with
// totalNodesAnalyzed=0. Only the seed fetch failing fails the walk.
//
// Walks are memoized by (target, maxHops) with an explicit cachedAt
// stamp, and concurrent identical walks collapse into one flight.

const (
	// MaxHopLimit bounds caller-supplied hop depth
	MaxHopLimit = 10
	// DefaultWalkCacheTTL is how long a memoized walk stays fresh
	DefaultWalkCacheTTL = 30 * time.Minute

	seedTxLimit     = 25 // recent txids fetched for the target
	hopTxLimit      = 10 // txids expanded per hop
	fetchBatchWidth = 5  // concurrent tx fetches in flight
	expandAddrLimit = 3  // addresses expanded per transaction
	expandTxLimit   = 5  // recent txids fetched per expanded address
)

// Indexer is the walker's view of the blockchain indexer client.
// Interface-shaped for dependency injection in tests.
type Indexer interface {
	GetTransaction(ctx context.Context, txid string) (*models.Transaction, error)
	GetAddressTransactions(ctx context.Context, addr string, limit int) ([]string, error)
}

// SanctionsLookup is the walker's view of the sanctions index
type SanctionsLookup interface {
	FindByAddress(addr string) ([]*models.SanctionEntity, error)
}

type walkCacheEntry struct {
	analysis *models.PathAnalysis
	cachedAt time.Time
}

// Walker performs bounded multi-hop traversals
type Walker struct {
	indexer   Indexer
	sanctions SanctionsLookup
	cacheTTL  time.Duration

	mu    sync.RWMutex
	cache map[string]walkCacheEntry
	group singleflight.Group
}

// NewWalker creates a walker over the given collaborators
func NewWalker(idx Indexer, sanctions SanctionsLookup, cacheTTL time.Duration) *Walker {
	if cacheTTL <= 0 {
		cacheTTL = DefaultWalkCacheTTL
	}
	return &Walker{
		indexer:   idx,
		sanctions: sanctions,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]walkCacheEntry),
	}
}

// Analyze runs (or serves from cache) a walk from target bounded by
// maxHops. maxHops <= 0 returns an empty analysis without touching the
// indexer; values above MaxHopLimit are clamped.
func (w *Walker) Analyze(ctx context.Context, target string, maxHops int) (*models.PathAnalysis, error) {
	if maxHops <= 0 {
		return emptyAnalysis(target, maxHops), nil
	}
	if maxHops > MaxHopLimit {
		maxHops = MaxHopLimit
	}

	key := fmt.Sprintf("%s:%d", target, maxHops)

	w.mu.RLock()
	entry, ok := w.cache[key]
	w.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < w.cacheTTL {
		return entry.analysis, nil
	}

	v, err, _ := w.group.Do(key, func() (any, error) {
		analysis, err := w.walk(ctx, target, maxHops)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.cache[key] = walkCacheEntry{analysis: analysis, cachedAt: time.Now()}
		w.mu.Unlock()
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PathAnalysis), nil
}

func (w *Walker) walk(ctx context.Context, target string, maxHops int) (*models.PathAnalysis, error) {
	start := time.Now()
	analysis := emptyAnalysis(target, maxHops)

	visitedAddrs := map[string]bool{target: true}
	visitedTxs := make(map[string]bool)

	queue, err := w.indexer.GetAddressTransactions(ctx, target, seedTxLimit)
	if err != nil {
		return nil, models.WrapError(models.KindOf(err), err, "seeding walk for %s", target)
	}

	for hop := 0; hop < maxHops && len(queue) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, models.WrapError(models.ErrInternal, err, "walk cancelled at hop %d", hop)
		}

		batch := queue
		if len(batch) > hopTxLimit {
			batch = batch[:hopTxLimit]
		}

		var next []string
		for _, tx := range w.fetchBatch(ctx, batch) {
			if visitedTxs[tx.Txid] {
				continue
			}
			visitedTxs[tx.Txid] = true
			analysis.TotalNodesAnalyzed++

			addrs := indexer.ExtractAddresses(tx)
			for _, addr := range addrs {
				if visitedAddrs[addr] {
					continue
				}
				entities, err := w.sanctions.FindByAddress(addr)
				if err != nil {
					log.Printf("[Walker] sanctions lookup failed for %s: %v", addr, err)
					continue
				}
				if len(entities) == 0 {
					continue
				}
				analysis.PathNodes = append(analysis.PathNodes, models.PathNode{
					Address:          addr,
					Txid:             tx.Txid,
					Hop:              hop + 1,
					Value:            addressValue(tx, addr),
					Timestamp:        tx.BlockTime * 1000,
					RiskContribution: HopContribution(hop+1, len(entities)),
				})
				analysis.SanctionedNodesFound++
			}

			if hop+1 >= maxHops {
				continue
			}
			expanded := 0
			for _, addr := range addrs {
				if expanded >= expandAddrLimit {
					break
				}
				if visitedAddrs[addr] {
					continue
				}
				visitedAddrs[addr] = true
				expanded++

				txids, err := w.indexer.GetAddressTransactions(ctx, addr, expandTxLimit)
				if err != nil {
					log.Printf("[Walker] history fetch failed for %s: %v", addr, err)
					continue
				}
				next = append(next, txids...)
			}
		}
		queue = next
	}

	if err := ctx.Err(); err != nil {
		return nil, models.WrapError(models.ErrInternal, err, "walk cancelled")
	}

	analysis.RiskPropagation = RiskPropagation(analysis)
	log.Printf("[Walker] %s maxHops=%d: %d tx analyzed, %d sanctioned nodes, propagation=%d (%s)",
		target, maxHops, analysis.TotalNodesAnalyzed, analysis.SanctionedNodesFound,
		analysis.RiskPropagation, time.Since(start).Round(time.Millisecond))
	return analysis, nil
}

// fetchBatch fetches txids with at most fetchBatchWidth requests in
// flight; batches are sequential, results append in completion order.
// Individual fetch failures are logged and dropped.
func (w *Walker) fetchBatch(ctx context.Context, txids []string) []*models.Transaction {
	var (
		mu  sync.Mutex
		out []*models.Transaction
	)
	for start := 0; start < len(txids); start += fetchBatchWidth {
		end := min(start+fetchBatchWidth, len(txids))

		var wg sync.WaitGroup
		for _, txid := range txids[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				tx, err := w.indexer.GetTransaction(ctx, id)
				if err != nil {
					log.Printf("[Walker] skipping tx %s: %v", id, err)
					return
				}
				mu.Lock()
				out = append(out, tx)
				mu.Unlock()
			}(txid)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}
	return out
}

// CacheSize reports the number of memoized walks (health endpoint)
func (w *Walker) CacheSize() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.cache)
}

// addressValue sums the sats a transaction moves from or to an address
func addressValue(tx *models.Transaction, addr string) int64 {
	var total int64
	for _, in := range tx.Inputs {
		for _, a := range in.Addresses {
			if a == addr {
				total += in.Value
				break
			}
		}
	}
	for _, out := range tx.Outputs {
		for _, a := range out.Addresses {
			if a == addr {
				total += out.Value
				break
			}
		}
	}
	return total
}

func emptyAnalysis(target string, maxHops int) *models.PathAnalysis {
	if maxHops < 0 {
		maxHops = 0
	}
	return &models.PathAnalysis{
		TargetAddress: target,
		MaxHops:       maxHops,
		PathNodes:     []models.PathNode{},
	}
}
