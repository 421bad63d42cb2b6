package tronclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"trx_discount_back/internal/wallet"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/metrics"
)

const defaultAPI = "https://api.trongrid.io"

var (
	ErrNoAccount = errors.New("no signing account configured")
	ErrNotOwner  = errors.New("from address does not match the signing account")
)

// TronHTTPClient is a TronGrid-backed wallet bridge that signs with a single local key.
type TronHTTPClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker

	address    string
	addressHex string
	privKey    *ecdsa.PrivateKey
}

var _ bridge.Bridge = (*TronHTTPClient)(nil)

// NewTronHTTPClient builds a client for cfg. Without a private key the client
// serves reads only and never reports Ready.
func NewTronHTTPClient(cfg config.Tron) (*TronHTTPClient, error) {
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = defaultAPI
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("TRON-PRO-API-KEY", cfg.APIKey)
	}

	c := &TronHTTPClient{
		http: httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "trongrid",
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.Warnf("circuit breaker %s: %s -> %s", name, from, to)
				metrics.BridgeBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}

	if cfg.PrivateKey != "" {
		addr, addrHex, key, err := wallet.AddressFromPrivKey(cfg.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "tron private key")
		}
		c.address, c.addressHex, c.privKey = addr, addrHex, key
		logrus.Infof("TRON signing account %s", addr)
	}
	return c, nil
}

// Ready is true when a signing account is configured and the node answers.
func (c *TronHTTPClient) Ready(ctx context.Context) bool {
	if c.privKey == nil {
		return false
	}
	var block struct {
		BlockID string `json:"blockID"`
	}
	if err := c.read(ctx, "/wallet/getnowblock", map[string]interface{}{}, &block); err != nil {
		logrus.WithError(err).Debug("TronGrid not reachable")
		return false
	}
	return block.BlockID != ""
}

func (c *TronHTTPClient) DefaultAddress() string {
	return c.address
}

type txResult struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type constantResponse struct {
	Result         txResult `json:"result"`
	ConstantResult []string `json:"constant_result"`
	EnergyUsed     int64    `json:"energy_used"`
	Transaction    struct {
		Ret []struct {
			Ret string `json:"ret"`
		} `json:"ret"`
	} `json:"transaction"`
}

func (r constantResponse) reverted() bool {
	if r.Result.Code != "" || (!r.Result.Result && r.Result.Message != "") {
		return true
	}
	for _, ret := range r.Transaction.Ret {
		if ret.Ret == "FAILED" || ret.Ret == "REVERT" {
			return true
		}
	}
	return false
}

func (r constantResponse) payload() []byte {
	if len(r.ConstantResult) == 0 {
		return nil
	}
	b, err := hex.DecodeString(r.ConstantResult[0])
	if err != nil {
		return nil
	}
	return b
}

// TriggerConstant runs a read-only contract call and returns the first result word set.
func (c *TronHTTPClient) TriggerConstant(ctx context.Context, call bridge.Call) ([]byte, error) {
	resp, err := c.constant(ctx, call, 0)
	if err != nil {
		return nil, err
	}
	if resp.reverted() {
		return nil, &bridge.CallError{Op: call.Selector, Message: decodeMessage(resp.Result.Message), Result: resp.payload()}
	}
	return resp.payload(), nil
}

func (c *TronHTTPClient) constant(ctx context.Context, call bridge.Call, callValue int64) (constantResponse, error) {
	param, err := callParams(call)
	if err != nil {
		return constantResponse{}, err
	}
	if callValue > 0 {
		param["call_value"] = callValue
	}

	var resp constantResponse
	if err := c.read(ctx, "/wallet/triggerconstantcontract", param, &resp); err != nil {
		return constantResponse{}, err
	}
	return resp, nil
}

// TriggerSmartContract dry-runs the call, then signs and broadcasts it.
// A revert during the dry run is returned as a *bridge.CallError carrying the result payload.
func (c *TronHTTPClient) TriggerSmartContract(ctx context.Context, call bridge.Call, opts bridge.CallOptions) (string, error) {
	if err := c.owns(opts.From); err != nil {
		return "", err
	}
	if call.Owner == "" {
		call.Owner = c.address
	}

	sim, err := c.constant(ctx, call, opts.CallValue)
	if err != nil {
		return "", errors.Wrap(err, "dry run")
	}
	if sim.reverted() {
		msg := decodeMessage(sim.Result.Message)
		if msg == "" {
			msg = "REVERT opcode executed"
		}
		return "", &bridge.CallError{Op: call.Selector, Message: msg, Result: sim.payload()}
	}

	param, err := callParams(call)
	if err != nil {
		return "", err
	}
	param["call_value"] = opts.CallValue
	param["fee_limit"] = opts.FeeLimit

	var resp struct {
		Result      txResult               `json:"result"`
		Transaction map[string]interface{} `json:"transaction"`
	}
	if err := c.post(ctx, "/wallet/triggersmartcontract", param, &resp); err != nil {
		return "", err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return "", &bridge.CallError{Op: call.Selector, Message: decodeMessage(resp.Result.Message)}
	}

	return c.signAndBroadcast(ctx, resp.Transaction)
}

// SendTrx transfers amount sun from the signing account to to.
func (c *TronHTTPClient) SendTrx(ctx context.Context, to string, amount int64, from string) (string, error) {
	if err := c.owns(from); err != nil {
		return "", err
	}
	toHex, err := wallet.Base58ToHex(to)
	if err != nil {
		return "", errors.Wrap(err, "to address")
	}

	var tx map[string]interface{}
	err = c.post(ctx, "/wallet/createtransaction", map[string]interface{}{
		"owner_address": c.addressHex,
		"to_address":    toHex,
		"amount":        amount,
		"visible":       false,
	}, &tx)
	if err != nil {
		return "", err
	}
	if msg, ok := tx["Error"].(string); ok && msg != "" {
		return "", errors.Errorf("create transaction: %s", msg)
	}

	return c.signAndBroadcast(ctx, tx)
}

// GetBalance returns the TRX balance of address in sun. Unactivated accounts have zero balance.
func (c *TronHTTPClient) GetBalance(ctx context.Context, address string) (int64, error) {
	addrHex, err := wallet.Base58ToHex(address)
	if err != nil {
		return 0, err
	}

	var account struct {
		Address string `json:"address"`
		Balance int64  `json:"balance"`
	}
	if err := c.read(ctx, "/wallet/getaccount", map[string]interface{}{
		"address": addrHex,
		"visible": false,
	}, &account); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

type eventsResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		TransactionID   string                 `json:"transaction_id"`
		EventName       string                 `json:"event_name"`
		ContractAddress string                 `json:"contract_address"`
		BlockTimestamp  int64                  `json:"block_timestamp"`
		Result          map[string]interface{} `json:"result"`
	} `json:"data"`
}

// GetEvents lists contract events newest first. Hex addresses in results are converted to base58.
func (c *TronHTTPClient) GetEvents(ctx context.Context, q bridge.EventQuery) ([]bridge.Event, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().
			SetContext(ctx).
			SetResult(&eventsResponse{}).
			ForceContentType("application/json").
			SetPathParam("address", q.Address).
			SetQueryParam("order_by", "block_timestamp,desc")
		if q.Name != "" {
			req.SetQueryParam("event_name", q.Name)
		}
		if q.Limit > 0 {
			req.SetQueryParam("limit", fmt.Sprint(q.Limit))
		}

		resp, err := req.Get("/v1/contracts/{address}/events")
		if err != nil {
			return nil, errors.Wrap(err, "events")
		}
		if resp.IsError() {
			return nil, errors.Errorf("events returned %s: %s", resp.Status(), resp.String())
		}
		return resp.Result().(*eventsResponse), nil
	})
	if err != nil {
		return nil, err
	}

	data := out.(*eventsResponse)
	if !data.Success {
		return nil, errors.New("events request unsuccessful")
	}

	events := make([]bridge.Event, 0, len(data.Data))
	for _, e := range data.Data {
		result := make(map[string]string, len(e.Result))
		for k, v := range e.Result {
			s := fmt.Sprint(v)
			if strings.HasPrefix(s, "0x") || (strings.HasPrefix(s, "41") && len(s) == 42) {
				if addr, err := wallet.HexToBase58(s); err == nil {
					s = addr
				}
			}
			result[k] = s
		}
		events = append(events, bridge.Event{
			TxID:           e.TransactionID,
			Name:           e.EventName,
			Contract:       e.ContractAddress,
			BlockTimestamp: e.BlockTimestamp,
			Result:         result,
		})
	}
	return events, nil
}

func (c *TronHTTPClient) owns(from string) error {
	if c.privKey == nil {
		return ErrNoAccount
	}
	if from != "" && from != c.address {
		return errors.Wrapf(ErrNotOwner, "%s", from)
	}
	return nil
}

func (c *TronHTTPClient) signAndBroadcast(ctx context.Context, tx map[string]interface{}) (string, error) {
	if err := signTransaction(tx, c.privKey); err != nil {
		return "", err
	}
	logrus.Debugf("broadcasting %s", txString(tx))

	var result struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &result); err != nil {
		return "", err
	}
	if result.Code != "" || !result.Result {
		return "", errors.Errorf("broadcast failed with code %s: %s", result.Code, decodeMessage(result.Message))
	}

	txID := result.TxID
	if txID == "" {
		txID, _ = tx["txID"].(string)
	}
	logrus.WithField("txid", txID).Info("transaction broadcast")
	return txID, nil
}

// read routes idempotent requests through the circuit breaker.
func (c *TronHTTPClient) read(ctx context.Context, path string, payload, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, path, payload, out)
	})
	return err
}

func (c *TronHTTPClient) post(ctx context.Context, path string, payload, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(out).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		return errors.Wrap(err, path)
	}
	if resp.IsError() {
		return errors.Errorf("%s returned %s: %s", path, resp.Status(), resp.String())
	}
	return nil
}

func callParams(call bridge.Call) (map[string]interface{}, error) {
	ownerHex, err := wallet.Base58ToHex(call.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "owner address")
	}
	contractHex, err := wallet.Base58ToHex(call.Contract)
	if err != nil {
		return nil, errors.Wrap(err, "contract address")
	}
	return map[string]interface{}{
		"owner_address":     ownerHex,
		"contract_address":  contractHex,
		"function_selector": call.Selector,
		"parameter":         call.Parameter,
		"visible":           false,
	}, nil
}

// decodeMessage returns TronGrid's hex-encoded error messages as text.
func decodeMessage(msg string) string {
	b, err := hex.DecodeString(msg)
	if err != nil {
		return msg
	}
	return strings.TrimSpace(string(b))
}

func signTransaction(tx map[string]interface{}, privKey *ecdsa.PrivateKey) error {
	rawDataHex, ok := tx["raw_data_hex"].(string)
	if !ok {
		return errors.New("missing raw_data_hex in transaction")
	}

	rawDataBytes, err := hex.DecodeString(rawDataHex)
	if err != nil {
		return errors.Wrap(err, "failed to decode raw_data_hex")
	}

	hash := sha256.Sum256(rawDataBytes)
	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return errors.Wrap(err, "failed to sign transaction")
	}

	tx["signature"] = []string{hex.EncodeToString(sig)}
	return nil
}

// txString renders a transaction for logs without its signature.
func txString(tx map[string]interface{}) string {
	cp := make(map[string]interface{}, len(tx))
	for k, v := range tx {
		if k != "signature" {
			cp[k] = v
		}
	}
	b, _ := json.Marshal(cp)
	return string(b)
}
