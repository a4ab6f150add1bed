package sanctions

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

// OFAC SDN Sanctions Index
//
// Serves O(1) address → entity and id → entity lookups from a JSON
// document of designated entities. Source rows carry one address each;
// rows sharing an entity id are consolidated into a single entity with
// the union of addresses. Only active rows are indexed.
//
// The index is read-mostly: it reloads lazily when the TTL elapses and
// swaps the whole in-memory structure under a write lock, so readers
// never observe a half-built index.

// DefaultTTL is how long a loaded index is served before a reload
const DefaultTTL = time.Hour

// akaRegex extracts aliases of the form a.k.a. 'NAME' or a.k.a. "NAME"
// from the free-text remarks column.
var akaRegex = regexp.MustCompile(`a\.k\.a\.\s*(?:'([^']+)'|"([^"]+)")`)

// document is the wire shape of the sanctions source
type document struct {
	Metadata struct {
		Source           string         `json:"source"`
		LastUpdated      string         `json:"lastUpdated"`
		Version          string         `json:"version"`
		TotalEntities    int            `json:"totalEntities"`
		Cryptocurrencies map[string]int `json:"cryptocurrencies"`
	} `json:"metadata"`
	Entities []entityRow `json:"entities"`
}

type entityRow struct {
	EntityID       string `json:"entityId"`
	EntityName     string `json:"entityName"`
	EntityType     string `json:"entityType"`
	Program        string `json:"program"`
	Cryptocurrency string `json:"cryptocurrency"`
	Address        string `json:"address"`
	Remarks        string `json:"remarks"`
	IsActive       bool   `json:"isActive"`
}

// Metadata summarizes the currently loaded list
type Metadata struct {
	Source           string         `json:"source"`
	LastUpdated      string         `json:"lastUpdated"`
	Version          string         `json:"version"`
	TotalEntities    int            `json:"totalEntities"`
	TotalAddresses   int            `json:"totalAddresses"`
	Cryptocurrencies map[string]int `json:"cryptocurrencies"`
	LoadedAt         string         `json:"loadedAt"`
}

// Index is the in-memory sanctions lookup structure
type Index struct {
	source Source
	ttl    time.Duration

	mu        sync.RWMutex
	loadedAt  time.Time
	entities  []*models.SanctionEntity
	byID      map[string]*models.SanctionEntity
	byAddress map[string][]*models.SanctionEntity // keyed lower-case
	meta      Metadata
}

// NewIndex creates an index over the given source. The first access
// triggers the initial load.
func NewIndex(source Source, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Index{
		source:    source,
		ttl:       ttl,
		byID:      make(map[string]*models.SanctionEntity),
		byAddress: make(map[string][]*models.SanctionEntity),
	}
}

// ensureFresh reloads when the TTL has elapsed since the last load.
// A missing source yields an empty index, not an error; loadedAt is
// still advanced so the next reload attempt waits a full TTL.
func (x *Index) ensureFresh() error {
	x.mu.RLock()
	fresh := !x.loadedAt.IsZero() && time.Since(x.loadedAt) < x.ttl
	x.mu.RUnlock()
	if fresh {
		return nil
	}
	return x.reload()
}

func (x *Index) reload() error {
	data, err := x.source.Load()
	if err != nil {
		return models.WrapError(models.ErrDataLoad, err, "reading sanctions source")
	}

	now := time.Now().UTC()

	if data == nil {
		log.Println("[Sanctions] Source missing, serving empty index")
		x.mu.Lock()
		x.loadedAt = now
		x.entities = nil
		x.byID = make(map[string]*models.SanctionEntity)
		x.byAddress = make(map[string][]*models.SanctionEntity)
		x.meta = Metadata{LoadedAt: now.Format(time.RFC3339)}
		x.mu.Unlock()
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.WrapError(models.ErrDataLoad, err, "parsing sanctions source")
	}

	byID := make(map[string]*models.SanctionEntity)
	byAddress := make(map[string][]*models.SanctionEntity)
	var order []string
	totalAddresses := 0

	for _, row := range doc.Entities {
		if !row.IsActive || row.EntityID == "" {
			continue
		}
		entity, exists := byID[row.EntityID]
		if !exists {
			entity = &models.SanctionEntity{
				EntityID:    row.EntityID,
				Name:        row.EntityName,
				ListSource:  models.ListSourceOFAC,
				LastUpdated: doc.Metadata.LastUpdated,
				Active:      true,
			}
			byID[row.EntityID] = entity
			order = append(order, row.EntityID)
		}
		if addr := strings.TrimSpace(row.Address); addr != "" && !containsFold(entity.Addresses, addr) {
			entity.Addresses = append(entity.Addresses, addr)
			totalAddresses++
			key := strings.ToLower(addr)
			byAddress[key] = append(byAddress[key], entity)
		}
		for _, alias := range extractAliases(row.Remarks) {
			if !containsFold(entity.Aliases, alias) {
				entity.Aliases = append(entity.Aliases, alias)
			}
		}
	}

	entities := make([]*models.SanctionEntity, 0, len(order))
	for _, id := range order {
		entities = append(entities, byID[id])
	}

	x.mu.Lock()
	x.loadedAt = now
	x.entities = entities
	x.byID = byID
	x.byAddress = byAddress
	x.meta = Metadata{
		Source:           doc.Metadata.Source,
		LastUpdated:      doc.Metadata.LastUpdated,
		Version:          doc.Metadata.Version,
		TotalEntities:    len(entities),
		TotalAddresses:   totalAddresses,
		Cryptocurrencies: doc.Metadata.Cryptocurrencies,
		LoadedAt:         now.Format(time.RFC3339),
	}
	x.mu.Unlock()

	log.Printf("[Sanctions] Index loaded: %d entities, %d addresses", len(entities), totalAddresses)
	return nil
}

// All returns the active entity set
func (x *Index) All() ([]*models.SanctionEntity, error) {
	if err := x.ensureFresh(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*models.SanctionEntity, len(x.entities))
	copy(out, x.entities)
	return out, nil
}

// FindByAddress returns every entity whose address set contains addr.
// Comparison is case-insensitive.
func (x *Index) FindByAddress(addr string) ([]*models.SanctionEntity, error) {
	if err := x.ensureFresh(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	hits := x.byAddress[strings.ToLower(addr)]
	out := make([]*models.SanctionEntity, len(hits))
	copy(out, hits)
	return out, nil
}

// FindByAddresses is the batched form of FindByAddress
func (x *Index) FindByAddresses(addrs []string) (map[string][]*models.SanctionEntity, error) {
	if err := x.ensureFresh(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string][]*models.SanctionEntity, len(addrs))
	for _, addr := range addrs {
		if hits := x.byAddress[strings.ToLower(addr)]; len(hits) > 0 {
			cp := make([]*models.SanctionEntity, len(hits))
			copy(cp, hits)
			out[addr] = cp
		}
	}
	return out, nil
}

// FindByID returns the consolidated entity for an entity id
func (x *Index) FindByID(id string) (*models.SanctionEntity, bool, error) {
	if err := x.ensureFresh(); err != nil {
		return nil, false, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.byID[id]
	return e, ok, nil
}

// SearchByName matches q case-insensitively against entity names and aliases
func (x *Index) SearchByName(q string) ([]*models.SanctionEntity, error) {
	if err := x.ensureFresh(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return nil, nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []*models.SanctionEntity
	for _, e := range x.entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
			continue
		}
		for _, alias := range e.Aliases {
			if strings.Contains(strings.ToLower(alias), needle) {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// Metadata returns the loaded list summary
func (x *Index) Metadata() (Metadata, error) {
	if err := x.ensureFresh(); err != nil {
		return Metadata{}, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.meta, nil
}

// Clear forces a reload on the next access
func (x *Index) Clear() {
	x.mu.Lock()
	x.loadedAt = time.Time{}
	x.mu.Unlock()
}

// extractAliases pulls a.k.a. names out of the remarks text
func extractAliases(remarks string) []string {
	var aliases []string
	for _, m := range akaRegex.FindAllStringSubmatch(remarks, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name = strings.TrimSpace(name); name != "" {
			aliases = append(aliases, name)
		}
	}
	return aliases
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
