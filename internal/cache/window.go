// Package cache implements the per-user window cache on Redis: the sliding
// window of recent payments, the reward cooldown marker and the reward
// namespace. Key layout and TTLs are part of the external contract:
//
//	user:{id}:recent_bills  window list, 1h
//	user:{id}:last_reward   cooldown timestamp, 7d
//	user:{id}:reward:{rid}  serialized reward, 24h
package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"paystreak/internal/engine"
	"paystreak/internal/model"
)

const (
	windowTTL   = time.Hour
	cooldownTTL = 7 * 24 * time.Hour
	rewardTTL   = 24 * time.Hour

	rewardScanCount = 100
)

//go:embed push_window.lua
var pushWindowScript string

var pushWindow = redis.NewScript(pushWindowScript)

type WindowCache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *WindowCache {
	return &WindowCache{rdb: rdb}
}

func windowKey(userID string) string {
	return fmt.Sprintf("user:%s:recent_bills", userID)
}

func cooldownKey(userID string) string {
	return fmt.Sprintf("user:%s:last_reward", userID)
}

func rewardKey(userID, rewardID string) string {
	return fmt.Sprintf("user:%s:reward:%s", userID, rewardID)
}

// GetWindow returns the user's window, newest first, or nil when the user has
// no recent history (never seen, or the window expired).
func (c *WindowCache) GetWindow(ctx context.Context, userID string) ([]model.BillSummary, error) {
	raw, err := c.rdb.LRange(ctx, windowKey(userID), 0, engine.WindowSize-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: read window: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeWindow(raw)
}

// PushWindow prepends a summary to the user's window, trims it to the bound
// and resets the TTL, all in one round trip. The script runs atomically on the
// server, so correctness does not depend on the event log's partitioning.
func (c *WindowCache) PushWindow(ctx context.Context, userID string, summary model.BillSummary) ([]model.BillSummary, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("cache: encode summary: %w", err)
	}
	res, err := pushWindow.Run(ctx, c.rdb,
		[]string{windowKey(userID)},
		string(data), int(windowTTL.Seconds()), engine.WindowSize,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: push window: %w", err)
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cache: unexpected script result %T", res)
	}
	raw := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("cache: unexpected window entry %T", item)
		}
		raw = append(raw, s)
	}
	return decodeWindow(raw)
}

// GetCooldown returns when the user's last reward was granted, or nil when the
// user was never rewarded or the marker expired.
func (c *WindowCache) GetCooldown(ctx context.Context, userID string) (*time.Time, error) {
	val, err := c.rdb.Get(ctx, cooldownKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read cooldown: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("cache: parse cooldown %q: %w", val, err)
	}
	return &at, nil
}

func (c *WindowCache) SetCooldown(ctx context.Context, userID string, at time.Time) error {
	err := c.rdb.Set(ctx, cooldownKey(userID), at.UTC().Format(time.RFC3339Nano), cooldownTTL).Err()
	if err != nil {
		return fmt.Errorf("cache: set cooldown: %w", err)
	}
	return nil
}

// PutReward stores a reward under the user's reward namespace. Returns false
// without overwriting when a reward with the same id already exists, which is
// what makes deterministic streak ids idempotent under reprocessing.
func (c *WindowCache) PutReward(ctx context.Context, userID string, reward model.Reward) (bool, error) {
	data, err := json.Marshal(reward)
	if err != nil {
		return false, fmt.Errorf("cache: encode reward: %w", err)
	}
	stored, err := c.rdb.SetNX(ctx, rewardKey(userID, reward.ID), data, rewardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("cache: store reward: %w", err)
	}
	return stored, nil
}

// ListRewards scans the user's reward namespace and fetches every live entry.
func (c *WindowCache) ListRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, rewardKey(userID, "*"), rewardScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache: scan rewards: %w", err)
	}
	rewards := make([]model.Reward, 0, len(keys))
	if len(keys) == 0 {
		return rewards, nil
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: fetch rewards: %w", err)
	}
	for _, val := range values {
		s, ok := val.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var r model.Reward
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, fmt.Errorf("cache: decode reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, nil
}

func decodeWindow(raw []string) ([]model.BillSummary, error) {
	window := make([]model.BillSummary, 0, len(raw))
	for _, entry := range raw {
		var s model.BillSummary
		if err := json.Unmarshal([]byte(entry), &s); err != nil {
			return nil, fmt.Errorf("cache: decode window entry: %w", err)
		}
		window = append(window, s)
	}
	return window, nil
}
