package tronclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trx_discount_back/internal/wallet"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/config"
)

const (
	receiving = "TA4Wt1DUCqz6YegbnsmqsWC5uUfbdBqPxm"
	contract  = "TA9pkx4DFxrEw8JZzUtyDrh2uAat1LDuJL"
)

type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(body map[string]interface{}) interface{}
	calls    map[string]int
	bodies   map[string]map[string]interface{}
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	n := &fakeNode{
		handlers: map[string]func(map[string]interface{}) interface{}{},
		calls:    map[string]int{},
		bodies:   map[string]map[string]interface{}{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		n.mu.Lock()
		n.calls[r.URL.Path]++
		n.bodies[r.URL.Path] = body
		h, ok := n.handlers[r.URL.Path]
		n.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h(body))
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) on(path string, h func(map[string]interface{}) interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[path] = h
}

func (n *fakeNode) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[path]
}

func (n *fakeNode) body(path string) map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bodies[path]
}

func newClient(t *testing.T, url string) (*TronHTTPClient, string) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c, err := NewTronHTTPClient(config.Tron{APIURL: url, PrivateKey: hex.EncodeToString(crypto.FromECDSA(key))})
	require.NoError(t, err)
	return c, c.DefaultAddress()
}

var oneParam, _ = bridge.UintParam(1)

func unsignedTx(map[string]interface{}) interface{} {
	return map[string]interface{}{
		"txID":         "abc123",
		"raw_data_hex": "0a0207",
		"raw_data":     map[string]interface{}{},
	}
}

func TestReady(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/getnowblock", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"blockID": "0000abc"}
	})

	c, addr := newClient(t, srv.URL)
	assert.NoError(t, wallet.ValidateAddress(addr))
	assert.True(t, c.Ready(context.Background()))

	readOnly, err := NewTronHTTPClient(config.Tron{APIURL: srv.URL})
	require.NoError(t, err)
	assert.False(t, readOnly.Ready(context.Background()))
	assert.Empty(t, readOnly.DefaultAddress())
}

func TestNewClientRejectsBadKey(t *testing.T) {
	_, err := NewTronHTTPClient(config.Tron{PrivateKey: "zz"})
	assert.Error(t, err)
}

func TestTriggerConstant(t *testing.T) {
	node, srv := newFakeNode(t)
	word := "00000000000000000000000000000000000000000000000000000000000f4240"
	node.on("/wallet/triggerconstantcontract", func(map[string]interface{}) interface{} {
		return map[string]interface{}{
			"result":          map[string]interface{}{"result": true},
			"constant_result": []string{word},
		}
	})

	c, _ := newClient(t, srv.URL)
	out, err := c.TriggerConstant(context.Background(), bridge.Call{
		Owner: contract, Contract: contract, Selector: "balanceOf(address)", Parameter: "00",
	})
	require.NoError(t, err)
	assert.Equal(t, word, hex.EncodeToString(out))

	body := node.body("/wallet/triggerconstantcontract")
	assert.Equal(t, "balanceOf(address)", body["function_selector"])
	assert.Equal(t, "410202020202020202020202020202020202020202", body["contract_address"])
}

func TestTriggerSmartContractRevertCarriesPayload(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/triggerconstantcontract", func(map[string]interface{}) interface{} {
		return map[string]interface{}{
			"result":          map[string]interface{}{"result": true},
			"constant_result": []string{"08c379a0deadbeef"},
			"transaction":     map[string]interface{}{"ret": []map[string]string{{"ret": "FAILED"}}},
		}
	})
	node.on("/wallet/triggersmartcontract", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"result": map[string]interface{}{"result": true}, "transaction": unsignedTx(nil)}
	})

	c, addr := newClient(t, srv.URL)
	_, err := c.TriggerSmartContract(context.Background(),
		bridge.Call{Owner: addr, Contract: contract, Selector: "buy(uint256)", Parameter: oneParam},
		bridge.CallOptions{FeeLimit: 1000, From: addr})

	var callErr *bridge.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "08c379a0deadbeef", hex.EncodeToString(callErr.Result))
	assert.Equal(t, 0, node.count("/wallet/triggersmartcontract"))
	assert.Equal(t, 0, node.count("/wallet/broadcasttransaction"))
}

func TestTriggerSmartContractBroadcasts(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/triggerconstantcontract", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"result": map[string]interface{}{"result": true}}
	})
	node.on("/wallet/triggersmartcontract", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"result": map[string]interface{}{"result": true}, "transaction": unsignedTx(nil)}
	})
	node.on("/wallet/broadcasttransaction", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"result": true, "txid": "abc123"}
	})

	c, addr := newClient(t, srv.URL)
	id, err := c.TriggerSmartContract(context.Background(),
		bridge.Call{Owner: addr, Contract: contract, Selector: "buy(uint256)", Parameter: oneParam},
		bridge.CallOptions{FeeLimit: 1000, From: addr})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	call := node.body("/wallet/triggersmartcontract")
	assert.EqualValues(t, 0, call["call_value"])
	assert.EqualValues(t, 1000, call["fee_limit"])

	sig, ok := node.body("/wallet/broadcasttransaction")["signature"].([]interface{})
	require.True(t, ok)
	require.Len(t, sig, 1)
	assert.Len(t, sig[0], 130)
}

func TestSendTrx(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/createtransaction", unsignedTx)
	node.on("/wallet/broadcasttransaction", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"result": true, "txid": "abc123"}
	})

	c, addr := newClient(t, srv.URL)
	id, err := c.SendTrx(context.Background(), receiving, 50_000_000, addr)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	body := node.body("/wallet/createtransaction")
	assert.EqualValues(t, 50_000_000, body["amount"])
	assert.Equal(t, "410101010101010101010101010101010101010101", body["to_address"])
}

func TestSendTrxBroadcastRejected(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/createtransaction", unsignedTx)
	node.on("/wallet/broadcasttransaction", func(map[string]interface{}) interface{} {
		return map[string]interface{}{"code": "BANDWITH_ERROR", "message": hex.EncodeToString([]byte("Account resource insufficient"))}
	})

	c, addr := newClient(t, srv.URL)
	_, err := c.SendTrx(context.Background(), receiving, 1, addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Account resource insufficient")
}

func TestSendTrxRequiresOwnAccount(t *testing.T) {
	_, srv := newFakeNode(t)
	c, _ := newClient(t, srv.URL)
	_, err := c.SendTrx(context.Background(), receiving, 1, contract)
	assert.ErrorIs(t, err, ErrNotOwner)

	readOnly, err := NewTronHTTPClient(config.Tron{APIURL: srv.URL})
	require.NoError(t, err)
	_, err = readOnly.SendTrx(context.Background(), receiving, 1, "")
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestGetBalance(t *testing.T) {
	node, srv := newFakeNode(t)
	node.on("/wallet/getaccount", func(body map[string]interface{}) interface{} {
		if body["address"] == "410202020202020202020202020202020202020202" {
			return map[string]interface{}{"address": body["address"], "balance": 2_500_000}
		}
		return map[string]interface{}{}
	})

	c, _ := newClient(t, srv.URL)
	bal, err := c.GetBalance(context.Background(), contract)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), bal)

	bal, err = c.GetBalance(context.Background(), receiving)
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = c.GetBalance(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestGetEvents(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/contracts/"+contract+"/events", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{
			"transaction_id":"tx1","event_name":"Transfer","contract_address":"` + contract + `",
			"block_timestamp":1700000000000,
			"result":{"from":"0x0202020202020202020202020202020202020202","to":"0x0101010101010101010101010101010101010101","value":"1000000"}
		}]}`))
	}))
	defer srv.Close()

	c, err := NewTronHTTPClient(config.Tron{APIURL: srv.URL})
	require.NoError(t, err)

	events, err := c.GetEvents(context.Background(), bridge.EventQuery{Name: "Transfer", Address: contract, Limit: 100})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, query, "event_name=Transfer")
	assert.Contains(t, query, "limit=100")

	e := events[0]
	assert.Equal(t, "tx1", e.TxID)
	assert.Equal(t, int64(1700000000000), e.BlockTimestamp)
	assert.Equal(t, contract, e.Result["from"])
	assert.Equal(t, receiving, e.Result["to"])
	assert.Equal(t, "1000000", e.Result["value"])
}

func TestGetEventsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewTronHTTPClient(config.Tron{APIURL: srv.URL})
	require.NoError(t, err)
	_, err = c.GetEvents(context.Background(), bridge.EventQuery{Name: "Transfer", Address: contract})
	assert.Error(t, err)
}

func TestDecodeMessage(t *testing.T) {
	assert.Equal(t, "REVERT opcode executed", decodeMessage(hex.EncodeToString([]byte("REVERT opcode executed"))))
	assert.Equal(t, "plain text", decodeMessage("plain text"))
}
