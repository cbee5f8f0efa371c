package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"

	"subindex/internal/chain"
	"subindex/internal/metrics"
)

// RPCHTTPClient talks JSON-RPC to an Ethereum node over HTTP. All calls go
// through a circuit breaker so a flapping node does not hammer the poller.
type RPCHTTPClient struct {
	URL        string
	HTTPClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewRPCHTTPClient builds a client for the given endpoint. proxyAddr, when
// non-empty, is a SOCKS5 host:port all requests are dialed through.
func NewRPCHTTPClient(url, proxyAddr string) (*RPCHTTPClient, error) {
	transport := &http.Transport{}
	if proxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, errors.Wrap(err, "create SOCKS5 dialer")
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	client := &RPCHTTPClient{
		URL: url,
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
	client.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chain-rpc",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return client, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCHTTPClient) call(ctx context.Context, method string, params []any, result any) error {
	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var rpcResp rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return nil, err
		}
		if rpcResp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
		}
		return nil, json.Unmarshal(rpcResp.Result, result)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	return errors.Wrap(err, method)
}

// BlockNumber returns the node's current head block.
func (c *RPCHTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &hexNum); err != nil {
		return 0, err
	}
	return parseHexUint(hexNum)
}

// rpcLog is the wire shape of a log entry in an eth_getLogs response.
type rpcLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

// GetLogs fetches all logs emitted by the contract in [from, to].
func (c *RPCHTTPClient) GetLogs(ctx context.Context, from, to uint64, address string) ([]chain.Log, error) {
	filter := map[string]any{
		"fromBlock": hexUint(from),
		"toBlock":   hexUint(to),
		"address":   address,
	}
	var raw []rpcLog
	if err := c.call(ctx, "eth_getLogs", []any{filter}, &raw); err != nil {
		return nil, err
	}

	logs := make([]chain.Log, 0, len(raw))
	for _, rl := range raw {
		lg, err := rl.toLog()
		if err != nil {
			return nil, errors.Wrapf(err, "log %s/%s", rl.TransactionHash, rl.LogIndex)
		}
		logs = append(logs, lg)
	}
	return logs, nil
}

func (rl rpcLog) toLog() (chain.Log, error) {
	block, err := parseHexUint(rl.BlockNumber)
	if err != nil {
		return chain.Log{}, err
	}
	idx, err := parseHexUint(rl.LogIndex)
	if err != nil {
		return chain.Log{}, err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(rl.Data, "0x"))
	if err != nil {
		return chain.Log{}, err
	}
	return chain.Log{
		Address:     strings.ToLower(rl.Address),
		Topics:      rl.Topics,
		Data:        data,
		BlockNumber: block,
		TxHash:      strings.ToLower(rl.TransactionHash),
		LogIndex:    uint32(idx),
		Removed:     rl.Removed,
	}, nil
}

// BlockTimestamp resolves a block number to its timestamp.
func (c *RPCHTTPClient) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := c.call(ctx, "eth_getBlockByNumber", []any{hexUint(number), false}, &block); err != nil {
		return 0, err
	}
	return parseHexUint(block.Timestamp)
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseHexUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}
