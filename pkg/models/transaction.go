package models

// TxIn represents a normalized Bitcoin transaction input. Inputs whose
// prevout could not be resolved by the indexer (coinbase, pruned data)
// carry an empty address set and a zero value.
type TxIn struct {
	PrevTxid  string   `json:"prevTxid"`
	PrevVout  uint32   `json:"prevVout"`
	Addresses []string `json:"addresses"`
	Value     int64    `json:"value"` // in Satoshis
}

// TxOut represents a normalized Bitcoin transaction output
type TxOut struct {
	Addresses    []string `json:"addresses"`
	Value        int64    `json:"value"` // in Satoshis
	ScriptPubKey string   `json:"scriptPubKey"`
}

// Transaction is the normalized transaction shape consumed by the
// screening core, independent of the upstream indexer's wire format.
type Transaction struct {
	Txid        string  `json:"txid"`
	Inputs      []TxIn  `json:"inputs"`
	Outputs     []TxOut `json:"outputs"`
	Fee         int64   `json:"fee"`  // in Satoshis
	Size        int     `json:"size"` // serialized size in bytes
	Weight      int     `json:"weight,omitempty"`
	BlockHeight int     `json:"blockHeight,omitempty"` // 0 for mempool
	BlockTime   int64   `json:"blockTime,omitempty"`   // unix seconds, 0 when unconfirmed
}

// TotalInputValue sums the resolved input values in sats
func (t *Transaction) TotalInputValue() int64 {
	var total int64
	for _, in := range t.Inputs {
		total += in.Value
	}
	return total
}

// TotalOutputValue sums the output values in sats
func (t *Transaction) TotalOutputValue() int64 {
	var total int64
	for _, out := range t.Outputs {
		total += out.Value
	}
	return total
}
