package validation

import "testing"

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"P2PKH Genesis", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"P2SH", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{"Bech32 P2WPKH", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", true},
		{"Bech32 P2WSH", "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3", true},
		{"Empty", "", false},
		{"Too Short Legacy", "1A1zP1eP5QGefi2DMPTf", false},
		{"Legacy With Invalid Char l", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNl", false},
		{"Legacy With Zero", "1A1zP1eP5QGefi2DMPTfTL5SLmv7Divf0a", false},
		{"Testnet Prefix", "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", false},
		{"Bech32 Mixed Case", "bc1QW508D6QEJxtdg4y5r3zarvary0c5xw7kv8f3t4", false},
		{"Bech32 Upper Case", "BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4", false},
		{"Ethereum Address", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAddress(tt.addr); got != tt.valid {
				t.Errorf("IsValidAddress(%q) = %v, want %v", tt.addr, got, tt.valid)
			}
		})
	}
}

func TestIsValidTxHash(t *testing.T) {
	tests := []struct {
		name  string
		hash  string
		valid bool
	}{
		{"Genesis Coinbase", "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", true},
		{"Upper Case Hex", "4A5E1E4BAAB89F3A32518A88C31BC87F618F76673E2CC77AB2127B7AFDEDA33B", true},
		{"Empty", "", false},
		{"Too Short", "4a5e1e4baab89f3a32518a88c31bc87f", false},
		{"Too Long", "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b0", false},
		{"Non Hex Char", "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33g", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTxHash(tt.hash); got != tt.valid {
				t.Errorf("IsValidTxHash(%q) = %v, want %v", tt.hash, got, tt.valid)
			}
		})
	}
}

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   string
		want    IdentifierKind
		wantErr bool
	}{
		{"Legacy Address", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", KindAddress, false},
		{"Bech32 Address", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", KindAddress, false},
		{"Tx Hash", "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", KindTx, false},
		{"Garbage", "not-a-bitcoin-identifier", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyIdentifier(tt.ident)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ClassifyIdentifier(%q) error = %v, wantErr %v", tt.ident, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ClassifyIdentifier(%q) = %v, want %v", tt.ident, got, tt.want)
			}
		})
	}
}

func TestNormalizeDirection(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"Empty Defaults To Both", "", "both", false},
		{"Inputs", "inputs", "inputs", false},
		{"Outputs", "outputs", "outputs", false},
		{"Both", "both", "both", false},
		{"Incoming Alias", "incoming", "inputs", false},
		{"Outgoing Alias", "outgoing", "outputs", false},
		{"Case Insensitive", "INPUTS", "inputs", false},
		{"Unknown", "sideways", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDirection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDirection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDirection(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
