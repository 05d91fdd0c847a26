package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"marketScope/internal/metrics"
	"marketScope/internal/model"
)

// DefaultTimeout bounds every RPC call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// RPCError wraps transport failures, timeouts and JSON-RPC error payloads alike.
type RPCError struct {
	Method string
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// Client issues the JSON-RPC calls the indexer needs. It is owned by the caller;
// there is no process-wide client cache.
type Client struct {
	rpcClient *rpc.Client
	timeout   time.Duration
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient, timeout), nil
}

// NewClientFromRPC wraps an existing go-ethereum RPC client.
func NewClientFromRPC(rpcClient *rpc.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{rpcClient: rpcClient, timeout: timeout}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.rpcClient.CallContext(callCtx, result, method, args...)
	metrics.ObserveRPC(method, start, err)
	if err != nil {
		return &RPCError{Method: method, Err: err}
	}
	return nil
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(head), nil
}

// LogQuery selects logs of one contract over an inclusive block range.
type LogQuery struct {
	Address   common.Address
	FromBlock uint64
	ToBlock   uint64
	// Topic0 restricts results to these signatures; empty means any.
	Topic0 []common.Hash
}

type filterArg struct {
	Address   string     `json:"address"`
	FromBlock string     `json:"fromBlock"`
	ToBlock   string     `json:"toBlock"`
	Topics    [][]string `json:"topics,omitempty"`
}

type rpcLog struct {
	Address     string         `json:"address"`
	Topics      []string       `json:"topics"`
	Data        string         `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	BlockHash   string         `json:"blockHash"`
	TxHash      string         `json:"transactionHash"`
	TxIndex     hexutil.Uint64 `json:"transactionIndex"`
	LogIndex    hexutil.Uint64 `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

// FetchLogs returns the logs matching q. Logs flagged as removed by a reorg are dropped.
func (c *Client) FetchLogs(ctx context.Context, q LogQuery) ([]model.RawLog, error) {
	if q.ToBlock < q.FromBlock {
		return nil, fmt.Errorf("invalid range [%d, %d]", q.FromBlock, q.ToBlock)
	}

	arg := filterArg{
		Address:   strings.ToLower(q.Address.Hex()),
		FromBlock: hexutil.EncodeUint64(q.FromBlock),
		ToBlock:   hexutil.EncodeUint64(q.ToBlock),
	}
	if len(q.Topic0) > 0 {
		topic0 := make([]string, 0, len(q.Topic0))
		for _, topic := range q.Topic0 {
			topic0 = append(topic0, topic.Hex())
		}
		arg.Topics = [][]string{topic0}
	}

	var logs []rpcLog
	if err := c.call(ctx, &logs, "eth_getLogs", arg); err != nil {
		return nil, err
	}

	out := make([]model.RawLog, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		out = append(out, model.RawLog{
			BlockNumber: uint64(log.BlockNumber),
			BlockHash:   log.BlockHash,
			TxHash:      strings.ToLower(log.TxHash),
			TxIndex:     uint64(log.TxIndex),
			LogIndex:    uint64(log.LogIndex),
			Address:     strings.ToLower(log.Address),
			Topics:      log.Topics,
			Data:        log.Data,
			Removed:     log.Removed,
		})
	}
	return out, nil
}
