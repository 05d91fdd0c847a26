package indexer

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketScope/internal/chain"
	"marketScope/internal/market"
	"marketScope/internal/model"
	"marketScope/internal/storage"
	"marketScope/internal/storage/memory"
)

const (
	testContract = "0x1111111111111111111111111111111111111111"
	testTrader   = "0x00000000000000000000000000000000000000aa"
	testCreator  = "0x00000000000000000000000000000000000000cc"
)

func word(v uint64) []byte {
	w := make([]byte, 32)
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func uintTopic(v uint64) string {
	return hexutil.Encode(word(v))
}

func addressTopic(addr string) string {
	return common.BytesToHash(common.HexToAddress(addr).Bytes()).Hex()
}

func rawLog(block, logIndex uint64, topics []string, data []byte) model.RawLog {
	return model.RawLog{
		BlockNumber: block,
		BlockHash:   fmt.Sprintf("0x%064x", block),
		TxHash:      fmt.Sprintf("0x%064x", block*100+logIndex),
		LogIndex:    logIndex,
		Address:     testContract,
		Topics:      topics,
		Data:        hexutil.Encode(data),
	}
}

func tradeLog(block, logIndex, marketID, yesPrice uint64) model.RawLog {
	var data []byte
	data = append(data, word(1)...)
	data = append(data, word(1)...)
	data = append(data, word(1000000000)...)
	data = append(data, word(1500000000)...)
	data = append(data, word(yesPrice)...)
	return rawLog(block, logIndex,
		[]string{market.TradeShape.Topic0.Hex(), uintTopic(marketID), addressTopic(testTrader)}, data)
}

func marketLog(block, logIndex, marketID uint64, question string) model.RawLog {
	var data []byte
	data = append(data, word(1)...)
	data = append(data, word(marketID)...)
	data = append(data, word(6*32)...)
	data = append(data, word(6500)...)
	data = append(data, word(1735689600)...)
	data = append(data, word(block+10000)...)
	data = append(data, word(uint64(len(question)))...)
	padded := make([]byte, (len(question)+31)/32*32)
	copy(padded, question)
	data = append(data, padded...)
	return rawLog(block, logIndex,
		[]string{market.MarketCreatedShape.Topic0.Hex(), uintTopic(marketID), addressTopic(testCreator)}, data)
}

func resolutionLog(block, logIndex, marketID, outcome uint64) model.RawLog {
	data := append(word(outcome), word(7000)...)
	return rawLog(block, logIndex, []string{market.ResolutionShape.Topic0.Hex(), uintTopic(marketID)}, data)
}

// fakeSource serves logs filtered by range and topic0, like eth_getLogs.
// stray logs ignore the topic filter and ride along with the trade query.
type fakeSource struct {
	mu           sync.Mutex
	head         uint64
	headFailures int
	headCalls    int
	logs         []model.RawLog
	stray        []model.RawLog
	fetchErr     error
	queries      []chain.LogQuery
}

func (f *fakeSource) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.headFailures > 0 {
		f.headFailures--
		return 0, &chain.RPCError{Method: "eth_blockNumber", Err: fmt.Errorf("connection reset")}
	}
	return f.head, nil
}

func (f *fakeSource) FetchLogs(_ context.Context, q chain.LogQuery) ([]model.RawLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	wanted := make(map[string]bool)
	for _, topic := range q.Topic0 {
		wanted[strings.ToLower(topic.Hex())] = true
	}
	inRange := func(l model.RawLog) bool {
		return l.BlockNumber >= q.FromBlock && l.BlockNumber <= q.ToBlock
	}

	out := make([]model.RawLog, 0)
	for _, l := range f.logs {
		if inRange(l) && (len(wanted) == 0 || wanted[l.Topic0()]) {
			out = append(out, l)
		}
	}
	if wanted[strings.ToLower(market.TradeShape.Topic0.Hex())] {
		for _, l := range f.stray {
			if inRange(l) {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (f *fakeSource) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// flakyStore fails selected writes while delegating everything else to memory.
type flakyStore struct {
	*memory.Store
	tradeErr     error
	saveFailures int
}

func (s *flakyStore) InsertTrade(ctx context.Context, t model.TradeEvent) (bool, error) {
	if s.tradeErr != nil {
		return false, storage.Wrap("insert trade", s.tradeErr)
	}
	return s.Store.InsertTrade(ctx, t)
}

func (s *flakyStore) SaveSyncState(ctx context.Context, block uint64) error {
	if s.saveFailures > 0 {
		s.saveFailures--
		return storage.Wrap("save sync state", fmt.Errorf("disk full"))
	}
	return s.Store.SaveSyncState(ctx, block)
}
