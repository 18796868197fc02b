package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// recordScript inserts or updates an entry and trims the insertion-order
// list atomically.
// KEYS[1] = order list key
// KEYS[2] = entry hash key
// ARGV[1] = event id
// ARGV[2] = processed flag ("1" or "0")
// ARGV[3] = timestamp (unix nanoseconds)
// ARGV[4] = max entries
// ARGV[5] = entry key prefix
var recordScript = redis.NewScript(`
local order = KEYS[1]
local entry = KEYS[2]
local max = tonumber(ARGV[4])

if redis.call("EXISTS", entry) == 0 then
    redis.call("RPUSH", order, ARGV[1])
end
redis.call("HSET", entry, "processed", ARGV[2], "ts", ARGV[3])

local evicted = 0
while redis.call("LLEN", order) > max do
    local oldest = redis.call("LPOP", order)
    redis.call("DEL", ARGV[5] .. oldest)
    evicted = evicted + 1
end
return evicted
`)

// releaseScript deletes a claim only if it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// DefaultClaimLease bounds how long a crashed run can block an event.
const DefaultClaimLease = 2 * time.Minute

// Redis is a Ledger shared by every replica pointing at the same Redis.
type Redis struct {
	client     *redis.Client
	prefix     string
	maxEntries int
	lease      time.Duration
	Now        func() time.Time
}

var _ Ledger = (*Redis)(nil)

// RedisOptions configures a Redis ledger.
type RedisOptions struct {
	Prefix     string
	MaxEntries int
	ClaimLease time.Duration
}

// NewRedis creates a ledger on top of an existing client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "brandkit:ledger:"
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = DefaultClaimLease
	}
	return &Redis{
		client:     client,
		prefix:     opts.Prefix,
		maxEntries: opts.MaxEntries,
		lease:      opts.ClaimLease,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (r *Redis) orderKey() string { return r.prefix + "order" }
func (r *Redis) entryPrefix() string { return r.prefix + "entry:" }
func (r *Redis) entryKey(id string) string { return r.entryPrefix() + id }
func (r *Redis) claimKey(id string) string { return r.prefix + "claim:" + id }

// Lookup reads the entry hash for id.
func (r *Redis) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	vals, err := r.client.HGetAll(ctx, r.entryKey(id)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger: lookup %s: %w", id, err)
	}
	if len(vals) == 0 {
		return Entry{}, false, nil
	}
	return decodeEntry(vals), true, nil
}

// Record writes the entry for id through recordScript.
func (r *Redis) Record(ctx context.Context, id string, processed bool) error {
	flag := "0"
	if processed {
		flag = "1"
	}
	ts := strconv.FormatInt(r.now().UnixNano(), 10)

	err := recordScript.Run(ctx, r.client,
		[]string{r.orderKey(), r.entryKey(id)},
		id, flag, ts, r.maxEntries, r.entryPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", id, err)
	}
	return nil
}

// Claim sets a leased marker for id with SET NX.
func (r *Redis) Claim(ctx context.Context, id string) (func(), bool, error) {
	token := uuid.NewString()
	key := r.claimKey(id)

	ok, err := r.client.SetNX(ctx, key, token, r.lease).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ledger: claim %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// Len returns the length of the insertion-order list.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger: len: %w", err)
	}
	return int(n), nil
}

// Recent returns up to n of the newest entries, oldest first.
func (r *Redis) Recent(ctx context.Context, n int) ([]Status, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := r.client.LRange(ctx, r.orderKey(), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		vals, err := r.client.HGetAll(ctx, r.entryKey(id)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("ledger: recent %s: %w", id, err)
		}
		if len(vals) == 0 {
			continue
		}
		out = append(out, Status{EventID: id, Entry: decodeEntry(vals)})
	}
	return out, nil
}

func decodeEntry(vals map[string]string) Entry {
	e := Entry{Processed: vals["processed"] == "1"}
	if ns, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		e.Timestamp = time.Unix(0, ns).UTC()
	}
	return e
}

func (r *Redis) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
