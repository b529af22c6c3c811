package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/pkg/redis"
)

// LeaderboardSize is the number of phenotypes kept per strategy board
const LeaderboardSize = 50

// LeaderEntry is the document stored as a leaderboard member
type LeaderEntry struct {
	Strategy   string            `json:"strategy"`
	Key        string            `json:"key"`
	Generation int               `json:"generation"`
	Genes      contracts.GeneSet `json:"genes"`
	VsBuyHold  float64           `json:"vs_buy_hold"`
	EndBalance float64           `json:"end_balance"`
	WinLoss    contracts.Ratio   `json:"wl_ratio"`
	Fitness    float64           `json:"fitness"`
}

// RedisMirror publishes per-strategy leaderboards and the latest checkpoint to Redis
// so `darwin status` can read a running search from another process.
type RedisMirror struct {
	board *redis.Leaderboard
	cache *redis.Cache
}

// NewRedisMirror creates the mirror under the darwin key prefix
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		board: redis.NewLeaderboard(client, "darwin", LeaderboardSize, redis.TTLRun),
		cache: redis.NewCache(client, "darwin"),
	}
}

// Name implements contracts.ResultSink and contracts.CheckpointStore
func (m *RedisMirror) Name() string {
	return "redis"
}

// WriteResults implements contracts.ResultSink
func (m *RedisMirror) WriteResults(ctx context.Context, record *contracts.GenerationRecord) error {
	byStrategy := make(map[string][]redis.Entry)
	for _, r := range record.Results {
		doc, err := json.Marshal(LeaderEntry{
			Strategy:   r.Strategy,
			Key:        r.Key,
			Generation: record.Generation,
			Genes:      r.Genes,
			VsBuyHold:  r.Result.VsBuyHold,
			EndBalance: r.Result.EndBalance,
			WinLoss:    r.Result.WinLossRatio,
			Fitness:    r.Fitness,
		})
		if err != nil {
			return fmt.Errorf("encode leaderboard entry: %w", err)
		}
		byStrategy[r.Strategy] = append(byStrategy[r.Strategy], redis.Entry{Member: string(doc), Score: r.Fitness})
	}

	for strategy, entries := range byStrategy {
		if err := m.board.Add(ctx, redis.LeaderboardKey(record.RunID, strategy), entries...); err != nil {
			return err
		}
	}
	return m.cache.Set(ctx, redis.LatestRunKey(), record.RunID, redis.TTLRun)
}

// SaveCheckpoint implements contracts.CheckpointStore
func (m *RedisMirror) SaveCheckpoint(ctx context.Context, s *contracts.Snapshot) error {
	return m.cache.Set(ctx, redis.CheckpointKey(s.RunID), s, redis.TTLRun)
}

// LatestRun returns the run ID last written by any search
func (m *RedisMirror) LatestRun(ctx context.Context) (string, bool, error) {
	var runID string
	found, err := m.cache.Get(ctx, redis.LatestRunKey(), &runID)
	return runID, found, err
}

// Checkpoint returns a run's latest mirrored checkpoint
func (m *RedisMirror) Checkpoint(ctx context.Context, runID string) (*contracts.Snapshot, bool, error) {
	var s contracts.Snapshot
	found, err := m.cache.Get(ctx, redis.CheckpointKey(runID), &s)
	if err != nil || !found {
		return nil, found, err
	}
	return &s, true, nil
}

// Leaders returns the n best mirrored phenotypes of a strategy
func (m *RedisMirror) Leaders(ctx context.Context, runID, strategy string, n int) ([]LeaderEntry, error) {
	entries, err := m.board.Top(ctx, redis.LeaderboardKey(runID, strategy), n)
	if err != nil {
		return nil, err
	}

	out := make([]LeaderEntry, 0, len(entries))
	for _, e := range entries {
		var le LeaderEntry
		if err := json.Unmarshal([]byte(e.Member), &le); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry: %w", err)
		}
		out = append(out, le)
	}
	return out, nil
}
