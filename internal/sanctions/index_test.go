package sanctions

import (
	"testing"
	"time"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

const fixtureDoc = `{
  "metadata": {
    "source": "OFAC SDN List",
    "lastUpdated": "2026-08-01",
    "version": "1.2.0",
    "totalEntities": 3,
    "cryptocurrencies": {"XBT": 4}
  },
  "entities": [
    {
      "entityId": "E-1001",
      "entityName": "LAZARUS GROUP",
      "entityType": "organization",
      "program": "DPRK3",
      "cryptocurrency": "XBT",
      "address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
      "remarks": "a.k.a. 'HIDDEN COBRA'; a.k.a. \"APT38\"",
      "isActive": true
    },
    {
      "entityId": "E-1001",
      "entityName": "LAZARUS GROUP",
      "entityType": "organization",
      "program": "DPRK3",
      "cryptocurrency": "XBT",
      "address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
      "remarks": "a.k.a. 'HIDDEN COBRA'",
      "isActive": true
    },
    {
      "entityId": "E-2002",
      "entityName": "BLENDER.IO",
      "entityType": "organization",
      "program": "DPRK3",
      "cryptocurrency": "XBT",
      "address": "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",
      "remarks": "",
      "isActive": true
    },
    {
      "entityId": "E-3003",
      "entityName": "DELISTED ENTITY",
      "entityType": "organization",
      "program": "CYBER2",
      "cryptocurrency": "XBT",
      "address": "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
      "isActive": false
    }
  ]
}`

func fixtureIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(MemorySource{Data: []byte(fixtureDoc)}, time.Hour)
}

func TestIndexConsolidatesEntityRows(t *testing.T) {
	idx := fixtureIndex(t)

	entities, err := idx.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	// Two E-1001 rows merge into one entity; the inactive row is dropped.
	if len(entities) != 2 {
		t.Fatalf("All() = %d entities, want 2", len(entities))
	}

	lazarus, ok, err := idx.FindByID("E-1001")
	if err != nil || !ok {
		t.Fatalf("FindByID(E-1001) = %v, %v", ok, err)
	}
	if len(lazarus.Addresses) != 2 {
		t.Errorf("consolidated addresses = %d, want 2", len(lazarus.Addresses))
	}
	if lazarus.ListSource != models.ListSourceOFAC {
		t.Errorf("ListSource = %v, want OFAC", lazarus.ListSource)
	}
}

func TestIndexExtractsAliases(t *testing.T) {
	idx := fixtureIndex(t)

	lazarus, _, err := idx.FindByID("E-1001")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if len(lazarus.Aliases) != 2 {
		t.Fatalf("Aliases = %v, want [HIDDEN COBRA, APT38]", lazarus.Aliases)
	}
	want := map[string]bool{"HIDDEN COBRA": true, "APT38": true}
	for _, alias := range lazarus.Aliases {
		if !want[alias] {
			t.Errorf("unexpected alias %q", alias)
		}
	}
}

func TestFindByAddressCaseInsensitive(t *testing.T) {
	idx := fixtureIndex(t)

	tests := []struct {
		name string
		addr string
		hits int
	}{
		{"Exact Case", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 1},
		{"Lower Case", "1a1zp1ep5qgefi2dmptftl5slmv7divfna", 1},
		{"Upper Case", "1A1ZP1EP5QGEFI2DMPTFTL5SLMV7DIVFNA", 1},
		{"Unknown", "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", 0},
		{"Inactive Entity Address", "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.FindByAddress(tt.addr)
			if err != nil {
				t.Fatalf("FindByAddress() error = %v", err)
			}
			if len(hits) != tt.hits {
				t.Errorf("FindByAddress(%q) = %d hits, want %d", tt.addr, len(hits), tt.hits)
			}
		})
	}
}

func TestFindByAddresses(t *testing.T) {
	idx := fixtureIndex(t)

	hits, err := idx.FindByAddresses([]string{
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",
		"1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
	})
	if err != nil {
		t.Fatalf("FindByAddresses() error = %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("FindByAddresses() = %d keys, want 2 (unknown address omitted)", len(hits))
	}
}

func TestSearchByName(t *testing.T) {
	idx := fixtureIndex(t)

	tests := []struct {
		name string
		q    string
		hits int
	}{
		{"Name Substring", "lazarus", 1},
		{"Alias Match", "hidden cobra", 1},
		{"Alias Match Mixed Case", "Apt38", 1},
		{"Other Entity", "blender", 1},
		{"No Match", "wannacry", 0},
		{"Blank Query", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.SearchByName(tt.q)
			if err != nil {
				t.Fatalf("SearchByName() error = %v", err)
			}
			if len(hits) != tt.hits {
				t.Errorf("SearchByName(%q) = %d hits, want %d", tt.q, len(hits), tt.hits)
			}
		})
	}
}

func TestMetadata(t *testing.T) {
	idx := fixtureIndex(t)

	meta, err := idx.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.Source != "OFAC SDN List" {
		t.Errorf("Source = %q", meta.Source)
	}
	if meta.TotalEntities != 2 {
		t.Errorf("TotalEntities = %d, want 2 (active, consolidated)", meta.TotalEntities)
	}
	if meta.TotalAddresses != 3 {
		t.Errorf("TotalAddresses = %d, want 3", meta.TotalAddresses)
	}
	if meta.LoadedAt == "" {
		t.Error("LoadedAt not stamped")
	}
}

func TestMissingSourceServesEmptyIndex(t *testing.T) {
	idx := NewIndex(FileSource{Path: "/nonexistent/sanctions.json"}, time.Hour)

	hits, err := idx.FindByAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil {
		t.Fatalf("missing source must not error, got %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty index returned %d hits", len(hits))
	}

	meta, err := idx.Metadata()
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.TotalEntities != 0 {
		t.Errorf("TotalEntities = %d, want 0", meta.TotalEntities)
	}
}

func TestMalformedSourceIsDataLoadError(t *testing.T) {
	idx := NewIndex(MemorySource{Data: []byte(`{"entities": [`)}, time.Hour)

	_, err := idx.All()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if models.KindOf(err) != models.ErrDataLoad {
		t.Errorf("error kind = %v, want DATA_LOAD", models.KindOf(err))
	}
}

func TestClearForcesReload(t *testing.T) {
	src := &countingSource{data: []byte(fixtureDoc)}
	idx := NewIndex(src, time.Hour)

	if _, err := idx.All(); err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if _, err := idx.All(); err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if src.loads != 1 {
		t.Fatalf("loads = %d, want 1 before Clear", src.loads)
	}

	idx.Clear()
	if _, err := idx.All(); err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if src.loads != 2 {
		t.Errorf("loads = %d, want 2 after Clear", src.loads)
	}
}

type countingSource struct {
	data  []byte
	loads int
}

func (s *countingSource) Load() ([]byte, error) {
	s.loads++
	return s.data, nil
}
