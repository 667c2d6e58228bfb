package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"spl-distributor/internal/observability"
)

// rpcHandler replies to each JSON-RPC method with a canned result.
func rpcHandler(t *testing.T, results map[string]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getAccountInfo": fmt.Sprintf(
			`{"value":{"lamports":5000,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","data":["%s","base64"],"executable":false,"rentEpoch":361}}`,
			data),
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), SystemProgram)
	if err != nil {
		t.Fatalf("GetAccountInfo failed: %v", err)
	}

	if info.Lamports != 5000 {
		t.Errorf("Expected 5000 lamports, got %d", info.Lamports)
	}
	if info.Owner != TokenProgram {
		t.Errorf("Expected token program owner, got %s", info.Owner)
	}
	if len(info.Data) != 4 || info.Data[0] != 1 {
		t.Errorf("Unexpected decoded data: %v", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getAccountInfo": `{"value":null}`,
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), SystemProgram)
	if err != nil {
		t.Fatalf("GetAccountInfo failed: %v", err)
	}
	if info != nil {
		t.Error("Expected nil for missing account")
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param"}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetLatestBlockhash(context.Background())

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("Expected code -32602, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetLatestBlockhash(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError for 429, got %T: %v", err, err)
	}
	if netErr.Op != "getLatestBlockhash" {
		t.Errorf("Expected op getLatestBlockhash, got %s", netErr.Op)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetLatestBlockhash(context.Background())

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError for 500, got %T: %v", err, err)
	}
}

func TestHTTPClient_GetTokenSupply(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getTokenSupply": `{"value":{"amount":"1000000000000","decimals":6,"uiAmount":1000000.0}}`,
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	supply, err := client.GetTokenSupply(context.Background(), TokenProgram)
	if err != nil {
		t.Fatalf("GetTokenSupply failed: %v", err)
	}

	if supply.Amount != 1_000_000_000_000 {
		t.Errorf("Expected amount 1000000000000, got %d", supply.Amount)
	}
	if supply.Decimals != 6 {
		t.Errorf("Expected 6 decimals, got %d", supply.Decimals)
	}
}

func TestHTTPClient_GetProgramAccounts_Filters(t *testing.T) {
	var captured struct {
		Params []json.RawMessage `json:"params"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":[]}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithCommitment("finalized"))
	mint := MustParseAddress("So11111111111111111111111111111111111111112")

	_, err := client.GetProgramAccounts(context.Background(), TokenProgram, &ProgramAccountsOpts{
		DataSize: TokenAccountSize,
		Memcmp:   []MemcmpFilter{{Offset: 0, Bytes: mint.Bytes()}},
	})
	if err != nil {
		t.Fatalf("GetProgramAccounts failed: %v", err)
	}

	if len(captured.Params) != 2 {
		t.Fatalf("Expected 2 params, got %d", len(captured.Params))
	}

	var config struct {
		Commitment string                       `json:"commitment"`
		Encoding   string                       `json:"encoding"`
		Filters    []map[string]json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(captured.Params[1], &config); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if config.Commitment != "finalized" {
		t.Errorf("Expected finalized commitment, got %s", config.Commitment)
	}
	if config.Encoding != "base64" {
		t.Errorf("Expected base64 encoding, got %s", config.Encoding)
	}
	if len(config.Filters) != 2 {
		t.Fatalf("Expected dataSize and memcmp filters, got %d", len(config.Filters))
	}
	if _, ok := config.Filters[0]["dataSize"]; !ok {
		t.Error("First filter should be dataSize")
	}
	if _, ok := config.Filters[1]["memcmp"]; !ok {
		t.Error("Second filter should be memcmp")
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	var sentEncoding string
	var sentTx string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.Unmarshal(req.Params[0], &sentTx)
		var opts map[string]string
		json.Unmarshal(req.Params[1], &opts)
		sentEncoding = opts["encoding"]
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	raw := []byte{1, 2, 3}
	sig, err := client.SendTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}

	if sig == "" {
		t.Error("Expected a signature")
	}
	if sentEncoding != "base64" {
		t.Errorf("Expected base64 wire encoding, got %s", sentEncoding)
	}
	if sentTx != base64.StdEncoding.EncodeToString(raw) {
		t.Errorf("Transaction bytes not base64-encoded as sent: %s", sentTx)
	}
}

func TestHTTPClient_CallRecordsLatency(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getHealth": `"ok"`,
	}))
	defer server.Close()

	// No other code path calls getHealth, so the method gets its own
	// latency series the first time this client touches it.
	before := testutil.CollectAndCount(observability.DefaultMetrics.RPCCallLatency)

	client := NewHTTPClient(server.URL)
	var status string
	if err := client.call(context.Background(), "getHealth", nil, &status); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	after := testutil.CollectAndCount(observability.DefaultMetrics.RPCCallLatency)
	if after != before+1 {
		t.Errorf("Expected one new latency series, had %d then %d", before, after)
	}
}

func TestHTTPClient_GetSignatureStatuses_NullEntries(t *testing.T) {
	server := httptest.NewServer(rpcHandler(t, map[string]string{
		"getSignatureStatuses": `{"value":[null,{"slot":48,"confirmations":null,"confirmationStatus":"finalized","err":null}]}`,
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses failed: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(statuses))
	}
	if statuses[0] != nil {
		t.Error("Unknown signature should map to nil")
	}
	if statuses[1] == nil || statuses[1].ConfirmationStatus != "finalized" {
		t.Error("Second entry should be finalized")
	}
}
