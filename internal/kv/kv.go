// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kv wraps github.com/redis/go-redis/v9 clients for the four
// logical namespaces the defense pipeline needs: frequency counters,
// the blocklist set, tarpit hop counters, and tarpit flags. Each
// namespace is a separate numbered Redis database so a key never
// crosses namespaces by construction.
package kv

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Namespaces bundles one client per logical database, all pointed at the
// same Redis instance.
type Namespaces struct {
	Frequency   *Client
	Blocklist   *Client
	Hops        *Client
	TarpitFlags *Client
}

// Options configures how each namespace client dials Redis.
type Options struct {
	Host             string
	Port             int
	DBFrequency      int
	DBBlocklist      int
	DBHops           int
	DBTarpitFlags    int
	DialTimeout      time.Duration
	Logger           *zerolog.Logger
}

// NewNamespaces builds the four namespace clients. Connection failures are
// not fatal here: each Client probes its own connection lazily and reports
// itself unavailable rather than panicking the caller, per the degrade-
// gracefully policy every KV consumer in this module follows.
func NewNamespaces(opts Options) *Namespaces {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	build := func(db int) *Client {
		return newClient(addr, db, opts.DialTimeout, opts.Logger)
	}
	return &Namespaces{
		Frequency:   build(opts.DBFrequency),
		Blocklist:   build(opts.DBBlocklist),
		Hops:        build(opts.DBHops),
		TarpitFlags: build(opts.DBTarpitFlags),
	}
}

// Client is a thin, namespace-scoped wrapper over a single go-redis
// database connection.
type Client struct {
	rdb     *redis.Client
	timeout time.Duration
	log     *zerolog.Logger
}

func newClient(addr string, db int, timeout time.Duration, log *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     20,
	})
	return &Client{rdb: rdb, timeout: timeout, log: log}
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.timeout)
}

func (c *Client) logError(op string, err error) {
	if c.log == nil || err == nil {
		return
	}
	c.log.Warn().Err(err).Str("op", op).Msg("kv operation failed")
}

// Ping reports whether the underlying connection is reachable.
func (c *Client) Ping(ctx context.Context) bool {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	if err := c.rdb.Ping(cctx).Err(); err != nil {
		c.logError("ping", err)
		return false
	}
	return true
}

// SetEx sets key to value with the given expiry.
func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	if err := c.rdb.Set(cctx, key, value, ttl).Err(); err != nil {
		c.logError("setex", err)
		return err
	}
	return nil
}

// Get returns the string value for key, and whether it existed.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	v, err := c.rdb.Get(cctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		c.logError("get", err)
		return "", false, err
	}
	return v, true, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	n, err := c.rdb.Exists(cctx, key).Result()
	if err != nil {
		c.logError("exists", err)
		return false, err
	}
	return n > 0, nil
}

// Incr increments key by 1 and sets its TTL (refreshed on every call, so a
// repeatedly hit counter never expires mid-burst).
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(cctx, key)
	pipe.Expire(cctx, key, ttl)
	if _, err := pipe.Exec(cctx); err != nil {
		c.logError("incr", err)
		return 0, err
	}
	return incr.Val(), nil
}

// SAdd adds member to the set at key, returning the number of elements
// actually added (0 means the member was already present).
func (c *Client) SAdd(ctx context.Context, key, member string) (int64, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	n, err := c.rdb.SAdd(cctx, key, member).Result()
	if err != nil {
		c.logError("sadd", err)
		return 0, err
	}
	return n, nil
}

// SIsMember reports whether member is present in the set at key.
func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	ok, err := c.rdb.SIsMember(cctx, key, member).Result()
	if err != nil {
		c.logError("sismember", err)
		return false, err
	}
	return ok, nil
}

// SCard returns the cardinality of the set at key.
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()
	n, err := c.rdb.SCard(cctx, key).Result()
	if err != nil {
		c.logError("scard", err)
		return 0, err
	}
	return n, nil
}

// ZScoredMember is one member of a sorted-set range query.
type ZScoredMember struct {
	Member string
	Score  float64
}

// FrequencyPipelineResult is the outcome of the five-step atomic sliding
// window operation described by RecordAndQuery.
type FrequencyPipelineResult struct {
	CountInWindow int64
	LastTwo       []ZScoredMember
}

// RecordAndQuery performs the sliding-window frequency update in a single
// atomic pipeline: prune entries older than the window, add the current
// request, count entries in window, fetch the last two scored members, and
// refresh the key's expiry. The ordering matters: count and last-two are
// read *after* the current entry is added, so callers must subtract one to
// get the "before this request" count.
func (c *Client) RecordAndQuery(ctx context.Context, key, member string, now, windowStart float64, ttl time.Duration) (FrequencyPipelineResult, error) {
	cctx, cancel := c.ctx(ctx)
	defer cancel()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(cctx, key, "-inf", fmt.Sprintf("(%f", windowStart))
	pipe.ZAdd(cctx, key, redis.Z{Score: now, Member: member})
	countCmd := pipe.ZCount(cctx, key, fmt.Sprintf("%f", windowStart), fmt.Sprintf("%f", now))
	lastTwoCmd := pipe.ZRangeWithScores(cctx, key, -2, -1)
	pipe.Expire(cctx, key, ttl)

	if _, err := pipe.Exec(cctx); err != nil {
		c.logError("frequency_pipeline", err)
		return FrequencyPipelineResult{}, err
	}

	out := FrequencyPipelineResult{CountInWindow: countCmd.Val()}
	for _, z := range lastTwoCmd.Val() {
		member, _ := z.Member.(string)
		out.LastTwo = append(out.LastTwo, ZScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}
