package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/auraflow/pkg/api"
)

// RedisStore is a Store and EventStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>venture:<id>    => HASH of venture fields (+ seq)
//	<prefix>seq             => INCR counter giving creation order
//	<prefix>idx:all         => ZSET of all venture IDs scored by seq
//	<prefix>idx:active      => ZSET of non-terminal venture IDs scored by seq
//	<prefix>lease:<id>      => lease owner, expiring with the lease TTL
//	<prefix>events:<id>     => LIST of JSON-encoded events
//
// State and detail writes are Lua scripts so the existence check, the write
// and the active index update happen atomically per venture.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

var _ EventStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "auraflow:").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "auraflow:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStore) keyVenture(id string) string { return r.prefix + "venture:" + id }
func (r *RedisStore) keySeq() string { return r.prefix + "seq" }
func (r *RedisStore) keyAll() string { return r.prefix + "idx:all" }
func (r *RedisStore) keyActive() string { return r.prefix + "idx:active" }
func (r *RedisStore) keyLease(id string) string { return r.prefix + "lease:" + id }
func (r *RedisStore) keyEvents(id string) string { return r.prefix + "events:" + id }

var (
	// KEYS: venture hash, active index. ARGV: state, terminal flag, id.
	redisSetStateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1])
if ARGV[2] == '1' then
	redis.call('ZREM', KEYS[2], ARGV[3])
else
	local seq = redis.call('HGET', KEYS[1], 'seq')
	redis.call('ZADD', KEYS[2], seq, ARGV[3])
end
return 1
`)

	// KEYS: venture hash. ARGV: field, document.
	redisSetDetailScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

	// KEYS: venture hash, lease key. ARGV: owner, ttl ms.
	// Returns -1 for a missing venture, 1 if acquired, 0 otherwise.
	redisLeaseAcquireScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local cur = redis.call('GET', KEYS[2])
if not cur then
	redis.call('PSETEX', KEYS[2], ARGV[2], ARGV[1])
	return 1
end
if cur == ARGV[1] then
	redis.call('PEXPIRE', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

	// KEYS: lease key. ARGV: owner, ttl ms.
	redisLeaseRenewScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and cur == ARGV[1] then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

	// KEYS: lease key. ARGV: owner.
	redisLeaseReleaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and cur == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)
)

func (r *RedisStore) Create(ctx context.Context) (*api.Venture, error) {
	id := NewVentureID()
	exists, err := r.client.Exists(ctx, r.keyVenture(id)).Result()
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, fmt.Errorf("venture id collision: %s", id)
	}

	seq, err := r.client.Incr(ctx, r.keySeq()).Result()
	if err != nil {
		return nil, err
	}

	v := &api.Venture{
		ID:        id,
		State:     api.InitialState,
		CreatedAt: time.Now().UTC(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.keyVenture(id), map[string]any{
		"id":         id,
		"state":      string(v.State),
		"created_at": strconv.FormatInt(v.CreatedAt.UnixNano(), 10),
		"seq":        strconv.FormatInt(seq, 10),
	})
	pipe.ZAdd(ctx, r.keyAll(), redis.Z{Score: float64(seq), Member: id})
	pipe.ZAdd(ctx, r.keyActive(), redis.Z{Score: float64(seq), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert venture: %w", err)
	}
	return v, nil
}

func decodeRedisVenture(fields map[string]string) (*api.Venture, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	v := &api.Venture{
		ID:        fields["id"],
		State:     api.State(fields["state"]),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	for _, f := range api.DetailFields {
		if raw, ok := fields[string(f)]; ok && raw != "" {
			if err := v.SetDetail(f, json.RawMessage(raw)); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*api.Venture, error) {
	fields, err := r.client.HGetAll(ctx, r.keyVenture(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return decodeRedisVenture(fields)
}

func (r *RedisStore) SetState(ctx context.Context, id string, state api.State) error {
	if err := checkState(state); err != nil {
		return err
	}
	terminal := "0"
	if state.Terminal() {
		terminal = "1"
	}
	n, err := redisSetStateScript.Run(ctx, r.client,
		[]string{r.keyVenture(id), r.keyActive()},
		string(state), terminal, id,
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return nil
}

func (r *RedisStore) SetDetail(ctx context.Context, id string, field api.DetailField, payload any) error {
	if _, err := api.ParseDetailField(string(field)); err != nil {
		return err
	}
	raw, err := EncodeDetail(payload)
	if err != nil {
		return err
	}
	n, err := redisSetDetailScript.Run(ctx, r.client,
		[]string{r.keyVenture(id)},
		string(field), string(raw),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, filter Filter) ([]*api.Venture, error) {
	ids, err := r.client.ZRange(ctx, r.keyAll(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Venture{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.keyVenture(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var ventures []*api.Venture
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		v, err := decodeRedisVenture(fields)
		if err != nil {
			return nil, err
		}
		if filter.State != "" && v.State != filter.State {
			continue
		}
		ventures = append(ventures, v)
	}
	return ventures, nil
}

func (r *RedisStore) ListActive(ctx context.Context) ([]string, error) {
	ids, err := r.client.ZRange(ctx, r.keyActive(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	// The index is maintained by SetState; re-check the stored state so a
	// hand-edited record does not stay listed.
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, r.keyVenture(id), "state")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	active := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		state, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if api.State(state).Active() {
			active = append(active, ids[i])
		}
	}
	return active, nil
}

func (r *RedisStore) TryAcquireLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}
	n, err := redisLeaseAcquireScript.Run(ctx, r.client,
		[]string{r.keyVenture(id), r.keyLease(id)},
		owner, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	switch n {
	case -1:
		return false, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (r *RedisStore) RenewLease(ctx context.Context, id, owner string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be > 0")
	}
	n, err := redisLeaseRenewScript.Run(ctx, r.client, []string{r.keyLease(id)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", api.ErrLeaseLost, id)
	}
	return nil
}

func (r *RedisStore) ReleaseLease(ctx context.Context, id, owner string) error {
	return redisLeaseReleaseScript.Run(ctx, r.client, []string{r.keyLease(id)}, owner).Err()
}

func (r *RedisStore) AppendEvent(ctx context.Context, ev api.VentureEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.keyEvents(ev.VentureID), data).Err()
}

func (r *RedisStore) ListEvents(ctx context.Context, ventureID string) ([]api.VentureEvent, error) {
	items, err := r.client.LRange(ctx, r.keyEvents(ventureID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]api.VentureEvent, 0, len(items))
	for _, item := range items {
		var ev api.VentureEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
