package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// HeaderSource fetches block headers. Satisfied by *Client.
type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockTimestamps resolves block numbers to wall-clock time. Each call
// re-fetches the header; lookups are infrequent enough that caching is
// not worth the staleness bookkeeping.
type BlockTimestamps struct {
	src HeaderSource
}

func NewBlockTimestamps(src HeaderSource) *BlockTimestamps {
	return &BlockTimestamps{src: src}
}

// BlockTime returns the timestamp of the given block in UTC.
func (b *BlockTimestamps) BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := b.src.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("header for block %d: %w", blockNumber, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}
