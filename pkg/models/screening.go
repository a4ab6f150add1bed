package models

// Sanctions Screening Data Model
//
// Shapes shared between the sanctions index, the path walker, the
// screeners, and the API surface. Entities are immutable after load;
// screening results live for one request plus an audit entry.

// ListSource identifies the sanctions list an entity came from
type ListSource string

const (
	ListSourceOFAC ListSource = "OFAC"
)

// MatchType distinguishes exact address hits from walker discoveries
type MatchType string

const (
	MatchDirect   MatchType = "DIRECT"
	MatchIndirect MatchType = "INDIRECT"
)

// RiskLevel buckets a 0-100 risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// SanctionEntity is one consolidated designated entity. Multiple source
// rows sharing an entity id are merged into a single entity carrying
// the union of their on-chain addresses.
type SanctionEntity struct {
	EntityID    string     `json:"entityId"`
	Name        string     `json:"entityName"`
	ListSource  ListSource `json:"listSource"`
	Addresses   []string   `json:"addresses"` // deduplicated, case-preserved
	Aliases     []string   `json:"aliases"`
	LastUpdated string     `json:"lastUpdated"` // ISO date
	Active      bool       `json:"isActive"`
}

// SanctionMatch links a screened address to a designated entity.
// A DIRECT match always carries confidence 100.
type SanctionMatch struct {
	ListSource     ListSource `json:"listSource"`
	EntityName     string     `json:"entityName"`
	EntityID       string     `json:"entityId"`
	MatchType      MatchType  `json:"matchType"`
	Confidence     int        `json:"confidence"` // 0-100
	MatchedAddress string     `json:"matchedAddress"`
}

// PathNode is a sanctioned address discovered during graph traversal
type PathNode struct {
	Address          string `json:"address"`
	Txid             string `json:"txid"`             // tx along which it was discovered
	Hop              int    `json:"hop"`              // 1..maxHops
	Value            int64  `json:"value"`            // sats moved from/to the address in that tx
	Timestamp        int64  `json:"timestamp"`        // block time in ms, 0 when unconfirmed
	RiskContribution int    `json:"riskContribution"` // 0-100
}

// PathAnalysis summarizes one bounded walk from a target address.
// Invariant: SanctionedNodesFound == len(PathNodes).
type PathAnalysis struct {
	TargetAddress        string     `json:"targetAddress"`
	MaxHops              int        `json:"maxHops"`
	TotalNodesAnalyzed   int        `json:"totalNodesAnalyzed"`
	SanctionedNodesFound int        `json:"sanctionedNodesFound"`
	PathNodes            []PathNode `json:"pathNodes"`       // discovery order
	RiskPropagation      int        `json:"riskPropagation"` // 0-100
}

// ScreeningResult is the per-address screening verdict
type ScreeningResult struct {
	Address          string          `json:"address"`
	RiskScore        int             `json:"riskScore"` // 0-100
	RiskLevel        RiskLevel       `json:"riskLevel"`
	SanctionMatches  []SanctionMatch `json:"sanctionMatches"`
	PathAnalysis     *PathAnalysis   `json:"pathAnalysis,omitempty"`
	Timestamp        string          `json:"timestamp"`  // ISO
	Confidence       int             `json:"confidence"` // 0-100
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// TxScreeningResult aggregates address screenings across a transaction
type TxScreeningResult struct {
	TxHash            string            `json:"txHash"`
	Direction         string            `json:"direction"` // inputs/outputs/both
	TotalAddresses    int               `json:"totalAddresses"`
	AddressesScreened int               `json:"addressesScreened"`
	AddressResults    []ScreeningResult `json:"addressResults"`
	OverallRiskScore  int               `json:"overallRiskScore"` // 0-100
	OverallRiskLevel  RiskLevel         `json:"overallRiskLevel"`
	SanctionMatches   []SanctionMatch   `json:"sanctionMatches"`       // union across addresses
	Confidence        int               `json:"confidence"`            // 0-100
	Transaction       *Transaction      `json:"transaction,omitempty"` // includeMetadata only
	Timestamp         string            `json:"timestamp"`
	ProcessingTimeMs  int64             `json:"processingTimeMs"`
}

// AuditEntry is one screening action recorded to the day-bucketed log
type AuditEntry struct {
	EntryID          string         `json:"entryId"`
	Action           string         `json:"action"`
	Subject          string         `json:"subject"` // address, "bulk_N_items", or "tx:<hash>"
	TxHash           string         `json:"txHash,omitempty"`
	Result           map[string]any `json:"result"`
	Timestamp        string         `json:"timestamp"` // ISO
	CorrelationID    string         `json:"correlationId"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
}
