package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// RewardStats aggregates min/avg/max priority fee for one percentile.
type RewardStats struct {
	Min *big.Int
	Avg *big.Int
	Max *big.Int
}

// FeeSnapshot is a recent-blocks view of network fees.
type FeeSnapshot struct {
	Blocks      int
	NextBaseFee *big.Int
	Rewards     map[float64]RewardStats
}

// FeeStats returns min/avg/max rewards over the last blocks for the given
// percentiles, plus the base fee projected for the next block.
func (c *Client) FeeStats(ctx context.Context, blocks int, percentiles []float64) (FeeSnapshot, error) {
	if blocks <= 0 {
		blocks = 100
	}
	if len(percentiles) == 0 {
		percentiles = []float64{50, 95, 99}
	}

	fh, err := c.backend.FeeHistory(ctx, uint64(blocks), nil, percentiles)
	if err != nil {
		return FeeSnapshot{}, fmt.Errorf("fee history: %w", err)
	}
	if len(fh.Reward) == 0 {
		return FeeSnapshot{}, errors.New("fee history: empty reward")
	}

	snap := FeeSnapshot{
		Blocks:  len(fh.Reward),
		Rewards: make(map[float64]RewardStats, len(percentiles)),
	}
	if n := len(fh.BaseFee); n > 0 && fh.BaseFee[n-1] != nil {
		snap.NextBaseFee = new(big.Int).Set(fh.BaseFee[n-1])
	}

	for j, p := range percentiles {
		st := RewardStats{Avg: new(big.Int), Max: new(big.Int)}
		seen := 0
		for _, row := range fh.Reward {
			if j >= len(row) || row[j] == nil {
				continue
			}
			v := row[j]
			if st.Min == nil || v.Cmp(st.Min) < 0 {
				st.Min = new(big.Int).Set(v)
			}
			if v.Cmp(st.Max) > 0 {
				st.Max = new(big.Int).Set(v)
			}
			st.Avg.Add(st.Avg, v)
			seen++
		}
		if seen > 0 {
			st.Avg.Div(st.Avg, big.NewInt(int64(seen)))
		}
		if st.Min == nil {
			st.Min = new(big.Int)
		}
		snap.Rewards[p] = st
	}
	return snap, nil
}
