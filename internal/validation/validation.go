package validation

import (
	"regexp"
	"strings"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Input Format Validation
//
// Syntax-only checks; no checksum verification and no network calls.
// Invalid inputs are rejected before any indexer traffic happens.
//
// Bech32 addresses are canonical in lower case, so the bech32 pattern
// is case-sensitive: mixed-case or upper-case bech32 is rejected here
// rather than case-folded downstream. Base58 addresses are preserved
// as supplied and compared case-insensitively by the sanctions index.

var (
	// Legacy (1...) and P2SH (3...) restricted to the base58 alphabet
	base58AddrRegex = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	// Native segwit, lower case only
	bech32AddrRegex = regexp.MustCompile(`^bc1[a-z0-9]{39,59}$`)
	txHashRegex     = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// IdentifierKind is the result of classifying an opaque identifier
type IdentifierKind string

const (
	KindAddress IdentifierKind = "ADDRESS"
	KindTx      IdentifierKind = "TX"
)

// IsValidAddress reports whether s is a syntactically valid Bitcoin
// address (legacy, P2SH, or bech32).
func IsValidAddress(s string) bool {
	return base58AddrRegex.MatchString(s) || bech32AddrRegex.MatchString(s)
}

// IsValidTxHash reports whether s is a 64-character hex transaction hash
func IsValidTxHash(s string) bool {
	return txHashRegex.MatchString(s)
}

// ClassifyIdentifier decides whether s names an address or a transaction.
// Address syntax wins when both could match (it cannot: lengths differ).
func ClassifyIdentifier(s string) (IdentifierKind, error) {
	switch {
	case IsValidAddress(s):
		return KindAddress, nil
	case IsValidTxHash(s):
		return KindTx, nil
	default:
		return "", models.NewError(models.ErrValidation, "identifier is neither a valid address nor a transaction hash: %q", s)
	}
}

// NormalizeDirection maps the accepted direction spellings onto the
// canonical inputs/outputs/both set. incoming/outgoing are aliases.
func NormalizeDirection(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return "both", nil
	case "inputs", "incoming":
		return "inputs", nil
	case "outputs", "outgoing":
		return "outputs", nil
	default:
		return "", models.NewError(models.ErrValidation, "invalid direction %q (want inputs, outputs, or both)", s)
	}
}
