package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// RedisBackend stores message history in a sorted set per room/channel
// and backs operator task dispatch with genuine Redis Streams consumer
// groups (XADD/XGROUP CREATE/XREADGROUP/XACK/XPENDING/XCLAIM).
type RedisBackend struct {
	client *redis.Client
	wire   envelope.Wire
}

func NewRedisBackend(ctx context.Context, url string, wire envelope.Wire) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping: %w", err)
	}
	return &RedisBackend{client: client, wire: wire}, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func historyKey(room, channel string) string {
	if room == "" && channel == "" {
		return "arqonbus:history:*"
	}
	return "arqonbus:history:" + room + ":" + channel
}

func (r *RedisBackend) Append(ctx context.Context, env *envelope.Envelope) (string, error) {
	data, err := env.Serialize(r.wire)
	if err != nil {
		return "", fmt.Errorf("storage: serialize envelope: %w", err)
	}
	key := historyKey(env.Room, env.Channel)
	score := float64(time.Now().UTC().UnixNano())
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: data}).Err(); err != nil {
		return "", fmt.Errorf("storage: append history: %w", err)
	}
	return env.ID, nil
}

func (r *RedisBackend) History(ctx context.Context, room, channel string, limit int, since, until *time.Time) ([]Record, error) {
	if room == "" {
		return nil, fmt.Errorf("storage: history requires a room")
	}
	key := historyKey(room, channel)

	min, max := "-inf", "+inf"
	if since != nil {
		min = strconv.FormatInt(since.UnixNano(), 10)
	}
	if until != nil {
		max = strconv.FormatInt(until.UnixNano(), 10)
	}

	opts := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		opts.Count = int64(limit)
	}
	members, err := r.client.ZRevRangeByScoreWithScores(ctx, key, opts).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: query history: %w", err)
	}

	out := make([]Record, 0, len(members))
	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		env, err := envelope.Parse([]byte(raw), r.wire)
		if err != nil {
			continue
		}
		out = append(out, Record{Envelope: env, StoredAt: time.Unix(0, int64(z.Score)).UTC()})
	}
	return out, nil
}

func (r *RedisBackend) Health(ctx context.Context) Health {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Health{Backend: "redis", Healthy: false, Detail: err.Error()}
	}
	return Health{Backend: "redis", Healthy: true}
}

// --- consumer-group dispatch ---

func (r *RedisBackend) EnsureGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("storage: create consumer group: %w", err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (r *RedisBackend) Publish(ctx context.Context, stream string, env *envelope.Envelope) (string, error) {
	data, err := env.Serialize(r.wire)
	if err != nil {
		return "", fmt.Errorf("storage: serialize task envelope: %w", err)
	}
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"envelope": data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("storage: publish task: %w", err)
	}
	return id, nil
}

func (r *RedisBackend) ReadGroup(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Task, error) {
	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read group: %w", err)
	}
	return decodeMessages(res, r.wire), nil
}

func decodeMessages(streams []redis.XStream, wire envelope.Wire) []Task {
	var out []Task
	for _, s := range streams {
		for _, msg := range s.Messages {
			raw, ok := msg.Values["envelope"].(string)
			if !ok {
				continue
			}
			env, err := envelope.Parse([]byte(raw), wire)
			if err != nil {
				continue
			}
			out = append(out, Task{ID: msg.ID, Envelope: env})
		}
	}
	return out
}

func (r *RedisBackend) Ack(ctx context.Context, stream, group, id string) error {
	if err := r.client.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("storage: ack: %w", err)
	}
	return nil
}

func (r *RedisBackend) Pending(ctx context.Context, stream, group string) ([]PendingTask, error) {
	res, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  1000,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: pending: %w", err)
	}
	out := make([]PendingTask, 0, len(res))
	for _, p := range res {
		out = append(out, PendingTask{
			ID:          p.ID,
			Consumer:    p.Consumer,
			IdleTime:    p.Idle,
			DeliveryCnt: p.RetryCount,
		})
	}
	return out, nil
}

func (r *RedisBackend) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	msgs, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: claim: %w", err)
	}
	return decodeMessages([]redis.XStream{{Stream: stream, Messages: msgs}}, r.wire), nil
}
