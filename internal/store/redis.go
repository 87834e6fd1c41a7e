package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperifyio/goarticle/internal/quota"
)

// KeyPrefix namespaces account hashes.
const KeyPrefix = "goarticle:account:"

// maxTxRetries bounds optimistic transaction retries on WATCH conflicts.
const maxTxRetries = 64

const (
	fieldTier    = "tier"
	fieldUsed    = "tokens_used"
	fieldLimit   = "token_limit"
	fieldExpires = "subscription_expires_at"
)

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// Redis stores each account as a hash. Writes that depend on the current
// value run as WATCH/MULTI transactions.
type Redis struct {
	Db *redis.Client
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	const op = "store.OpenRedis"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Redis{Db: db}, nil
}

func accountKey(id string) string { return KeyPrefix + id }

func (r *Redis) Create(ctx context.Context, a quota.Account) error {
	const op = "store.Redis.Create"
	if err := validateID(a.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	key := accountKey(a.ID)
	fields := map[string]any{
		fieldTier:    string(a.Tier),
		fieldUsed:    a.TokensUsed,
		fieldLimit:   a.TokenLimit,
		fieldExpires: "",
	}
	if a.SubscriptionExpiresAt != nil {
		fields[fieldExpires] = a.SubscriptionExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrAccountExists, a.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Redis) FindByID(ctx context.Context, id string) (*quota.Account, error) {
	const op = "store.Redis.FindByID"
	vals, err := r.Db.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	a, err := decodeAccount(id, vals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func (r *Redis) Update(ctx context.Context, id string, p quota.Patch) error {
	const op = "store.Redis.Update"
	key := accountKey(id)
	fields := map[string]any{}
	if p.TokensUsed != nil {
		fields[fieldUsed] = *p.TokensUsed
	}
	if p.TokenLimit != nil {
		fields[fieldLimit] = *p.TokenLimit
	}
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", quota.ErrAccountNotFound, id)
		}
		if len(fields) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Redis) IncrementTokensUsed(ctx context.Context, id string, delta uint64, ceiling *uint64) (uint64, error) {
	const op = "store.Redis.IncrementTokensUsed"
	key := accountKey(id)
	var next uint64
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, fieldUsed).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", quota.ErrAccountNotFound, id)
		}
		if err != nil {
			return err
		}
		cur, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", fieldUsed, err)
		}
		next = quota.ApplyIncrement(cur, delta, ceiling)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldUsed, next)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return next, nil
}

func (r *Redis) ListIDs(ctx context.Context) ([]string, error) {
	const op = "store.Redis.ListIDs"
	var ids []string
	iter := r.Db.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) Close() error { return r.Db.Close() }

// watch runs fn in an optimistic transaction, retrying when another client
// modified key between WATCH and EXEC.
func (r *Redis) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.Db.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %s: too many conflicts", key)
}

func decodeAccount(id string, vals map[string]string) (*quota.Account, error) {
	a := &quota.Account{ID: id, Tier: quota.Tier(vals[fieldTier])}
	var err error
	if v := vals[fieldUsed]; v != "" {
		if a.TokensUsed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldUsed, err)
		}
	}
	if v := vals[fieldLimit]; v != "" {
		if a.TokenLimit, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldLimit, err)
		}
	}
	if v := vals[fieldExpires]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldExpires, err)
		}
		a.SubscriptionExpiresAt = &t
	}
	return a, nil
}
