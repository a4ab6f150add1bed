package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

const testTxid = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

const txFixture = `{
  "txid": "` + testTxid + `",
  "size": 250,
  "weight": 1000,
  "fee": 1500,
  "vin": [
    {
      "txid": "e3bf3d07d4b0375638d5f1db5255fe07ba2c4cb067cd81b84ee974b6585fb468",
      "vout": 0,
      "prevout": {
        "scriptpubkey": "0014abcd",
        "scriptpubkey_address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
        "value": 100000
      },
      "is_coinbase": false
    },
    {
      "txid": "",
      "vout": 4294967295,
      "prevout": null,
      "is_coinbase": true
    }
  ],
  "vout": [
    {
      "scriptpubkey": "76a914...88ac",
      "scriptpubkey_address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
      "value": 98500
    },
    {
      "scriptpubkey": "6a24aa21a9ed",
      "value": 0
    }
  ],
  "status": {"confirmed": true, "block_height": 850000, "block_time": 1700000000}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, rateLimit int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, RateLimit: rateLimit})
}

func TestGetTransactionNormalization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tx/"+testTxid {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(txFixture))
	}, 0)

	tx, err := c.GetTransaction(context.Background(), testTxid)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}

	if tx.Txid != testTxid || tx.Fee != 1500 || tx.Size != 250 {
		t.Errorf("unexpected tx header: %+v", tx)
	}
	if tx.BlockHeight != 850000 || tx.BlockTime != 1700000000 {
		t.Errorf("confirmation status not mapped: height=%d time=%d", tx.BlockHeight, tx.BlockTime)
	}

	if len(tx.Inputs) != 2 {
		t.Fatalf("Inputs = %d, want 2", len(tx.Inputs))
	}
	if tx.Inputs[0].Value != 100000 || len(tx.Inputs[0].Addresses) != 1 {
		t.Errorf("funded input not mapped: %+v", tx.Inputs[0])
	}
	// Coinbase input: no prevout, empty address set, zero value.
	if tx.Inputs[1].Value != 0 || len(tx.Inputs[1].Addresses) != 0 {
		t.Errorf("coinbase input must normalize to empty: %+v", tx.Inputs[1])
	}

	if len(tx.Outputs) != 2 {
		t.Fatalf("Outputs = %d, want 2", len(tx.Outputs))
	}
	// OP_RETURN output has no address but keeps its script.
	if len(tx.Outputs[1].Addresses) != 0 || tx.Outputs[1].ScriptPubKey == "" {
		t.Errorf("script-only output not mapped: %+v", tx.Outputs[1])
	}
}

func TestGetTransactionRejectsBadHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid hash")
	}, 0)

	_, err := c.GetTransaction(context.Background(), "zz-not-hex")
	if models.KindOf(err) != models.ErrValidation {
		t.Errorf("error kind = %v, want VALIDATION", models.KindOf(err))
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, 0)

	_, err := c.GetTransaction(context.Background(), testTxid)
	if models.KindOf(err) != models.ErrDataNotFound {
		t.Errorf("error kind = %v, want DATA_NOT_FOUND", models.KindOf(err))
	}
}

func TestGetTransactionServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}, 0)

	_, err := c.GetTransaction(context.Background(), testTxid)
	if models.KindOf(err) != models.ErrExternalAPI {
		t.Errorf("error kind = %v, want EXTERNAL_API", models.KindOf(err))
	}
}

func TestGetAddressTransactionsClampsLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 30 txids on the wire; the client clamps to 25.
		body := "["
		for i := 0; i < 30; i++ {
			if i > 0 {
				body += ","
			}
			body += `{"txid": "` + testTxid + `"}`
		}
		body += "]"
		_, _ = w.Write([]byte(body))
	}, 0)

	txids, err := c.GetAddressTransactions(context.Background(), "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", 100)
	if err != nil {
		t.Fatalf("GetAddressTransactions() error = %v", err)
	}
	if len(txids) != DefaultAddressTxLimit {
		t.Errorf("txids = %d, want clamped %d", len(txids), DefaultAddressTxLimit)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.GetAddressTransactions(ctx, "bc1q_addr", 5); err != nil {
			t.Fatalf("request %d failed inside the window: %v", i, err)
		}
	}

	_, err := c.GetAddressTransactions(ctx, "bc1q_addr", 5)
	if err == nil {
		t.Fatal("expected rate-limit error on the third request")
	}
	if models.KindOf(err) != models.ErrExternalAPI {
		t.Errorf("error kind = %v, want EXTERNAL_API", models.KindOf(err))
	}
	var se *models.ScreenError
	if !errors.As(err, &se) {
		t.Fatalf("expected ScreenError, got %T", err)
	}
	if se.Details["limit"] != 2 {
		t.Errorf("details limit = %v, want 2", se.Details["limit"])
	}

	status := c.RateLimitStatus()
	if status.Requests != 2 || status.Limit != 2 {
		t.Errorf("RateLimitStatus = %+v", status)
	}
}

func TestExtractAddresses(t *testing.T) {
	tx := &models.Transaction{
		Inputs: []models.TxIn{
			{Addresses: []string{"addr_a"}},
			{Addresses: []string{"addr_b"}},
			{Addresses: []string{}},
		},
		Outputs: []models.TxOut{
			{Addresses: []string{"addr_b"}}, // duplicate across sides
			{Addresses: []string{"addr_c"}},
			{Addresses: []string{""}},
		},
	}

	addrs := ExtractAddresses(tx)
	want := []string{"addr_a", "addr_b", "addr_c"}
	if len(addrs) != len(want) {
		t.Fatalf("ExtractAddresses() = %v, want %v", addrs, want)
	}
	for i, a := range want {
		if addrs[i] != a {
			t.Errorf("addrs[%d] = %q, want %q (first-seen order)", i, addrs[i], a)
		}
	}
}
