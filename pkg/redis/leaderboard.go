package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one scored leaderboard member
type Entry struct {
	Member string
	Score  float64
}

// Leaderboard keeps the highest scored members of sorted sets under a key prefix
type Leaderboard struct {
	client *Client
	prefix string
	keep   int
	ttl    time.Duration
}

// NewLeaderboard creates a leaderboard keeping at most keep members per board (0 = all)
func NewLeaderboard(client *Client, prefix string, keep int, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, prefix: prefix, keep: keep, ttl: ttl}
}

// Key returns the full key of a board
func (l *Leaderboard) Key(board string) string {
	return fmt.Sprintf("%s:%s", l.prefix, board)
}

// Add scores members on a board and trims it to the configured size
func (l *Leaderboard) Add(ctx context.Context, board string, entries ...Entry) error {
	if !l.client.Enabled() || len(entries) == 0 {
		return nil
	}

	key := l.Key(board)
	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: e.Score, Member: e.Member}
	}

	pipe := l.client.Redis().TxPipeline()
	pipe.ZAdd(ctx, key, members...)
	if l.keep > 0 {
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-l.keep-1))
	}
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard add failed: %w", err)
	}
	return nil
}

// Top returns the n best members of a board, highest score first
func (l *Leaderboard) Top(ctx context.Context, board string, n int) ([]Entry, error) {
	if !l.client.Enabled() || n <= 0 {
		return nil, nil
	}

	zs, err := l.client.Redis().ZRevRangeWithScores(ctx, l.Key(board), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard read failed: %w", err)
	}

	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, Entry{Member: member, Score: z.Score})
	}
	return out, nil
}
