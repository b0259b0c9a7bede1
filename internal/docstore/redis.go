package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisGateway backs the document store with Redis: one hash per document
// (scalar fields JSON-encoded, so HINCRBY works on numeric fields), one set
// per array-valued field, and a per-collection id index. UpdateFields runs
// inside MULTI/EXEC, so one call applies atomically.
type RedisGateway struct {
	client *redis.Client
}

// NewRedisGateway connects to Redis and verifies the connection.
func NewRedisGateway(redisURL string) (*RedisGateway, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisGateway{client: client}, nil
}

// NewRedisGatewayWithClient builds a gateway from an existing client.
func NewRedisGatewayWithClient(client *redis.Client) *RedisGateway {
	return &RedisGateway{client: client}
}

func (g *RedisGateway) Close() error {
	return g.client.Close()
}

func (g *RedisGateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func arrKey(collection, id, field string) string {
	return docKey(collection, id) + ":arr:" + field
}

func arrRegistryKey(collection, id string) string {
	return docKey(collection, id) + ":arrays"
}

func colKey(collection string) string {
	return "col:" + collection
}

func (g *RedisGateway) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	raw, err := g.client.HGetAll(ctx, docKey(collection, id)).Result()
	if err != nil {
		return Document{}, &NetworkError{Op: "get " + collection + "/" + id, Err: err}
	}
	if len(raw) == 0 {
		exists, err := g.client.SIsMember(ctx, colKey(collection), id).Result()
		if err != nil {
			return Document{}, &NetworkError{Op: "get " + collection + "/" + id, Err: err}
		}
		if !exists {
			return Document{}, ErrNotFound
		}
	}

	fields := map[string]any{}
	for field, encoded := range raw {
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			// HINCRBY on a never-set field leaves a bare integer; anything
			// else undecodable is kept as the raw string.
			value = encoded
		}
		fields[field] = value
	}

	arrayFields, err := g.client.SMembers(ctx, arrRegistryKey(collection, id)).Result()
	if err != nil {
		return Document{}, &NetworkError{Op: "get " + collection + "/" + id, Err: err}
	}
	for _, field := range arrayFields {
		members, err := g.client.SMembers(ctx, arrKey(collection, id, field)).Result()
		if err != nil {
			return Document{}, &NetworkError{Op: "get " + collection + "/" + id, Err: err}
		}
		sort.Strings(members)
		fields[field] = members
	}

	return Document{ID: id, Fields: fields}, nil
}

func (g *RedisGateway) CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, value := range fields {
			if members, ok := stringSliceValue(value); ok {
				pipe.SAdd(ctx, arrRegistryKey(collection, id), field)
				if len(members) > 0 {
					pipe.SAdd(ctx, arrKey(collection, id, field), members)
				}
				continue
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", field, err)
			}
			pipe.HSet(ctx, docKey(collection, id), field, string(encoded))
		}
		pipe.SAdd(ctx, colKey(collection), id)
		return nil
	})
	if err != nil {
		return "", &NetworkError{Op: "create " + collection, Err: err}
	}
	return id, nil
}

func (g *RedisGateway) UpdateFields(ctx context.Context, collection, id string, updates ...FieldUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	exists, err := g.client.SIsMember(ctx, colKey(collection), id).Result()
	if err != nil {
		return &NetworkError{Op: "update " + collection + "/" + id, Err: err}
	}
	if !exists {
		return ErrNotFound
	}

	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range updates {
			switch u.op {
			case opSet:
				encoded, err := json.Marshal(u.value)
				if err != nil {
					return fmt.Errorf("encode field %s: %w", u.Field, err)
				}
				pipe.HSet(ctx, docKey(collection, id), u.Field, string(encoded))
			case opIncrement:
				pipe.HIncrBy(ctx, docKey(collection, id), u.Field, u.delta)
			case opArrayUnion:
				pipe.SAdd(ctx, arrRegistryKey(collection, id), u.Field)
				pipe.SAdd(ctx, arrKey(collection, id, u.Field), u.value)
			case opArrayRemove:
				pipe.SAdd(ctx, arrRegistryKey(collection, id), u.Field)
				pipe.SRem(ctx, arrKey(collection, id, u.Field), u.value)
			}
		}
		return nil
	})
	if err != nil {
		return &NetworkError{Op: "update " + collection + "/" + id, Err: err}
	}
	return nil
}

func (g *RedisGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	arrayFields, err := g.client.SMembers(ctx, arrRegistryKey(collection, id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return &NetworkError{Op: "delete " + collection + "/" + id, Err: err}
	}

	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := []string{docKey(collection, id), arrRegistryKey(collection, id)}
		for _, field := range arrayFields {
			keys = append(keys, arrKey(collection, id, field))
		}
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, colKey(collection), id)
		return nil
	})
	if err != nil {
		return &NetworkError{Op: "delete " + collection + "/" + id, Err: err}
	}
	return nil
}

func (g *RedisGateway) QueryByField(ctx context.Context, collection string, q Query) ([]Document, error) {
	ids, err := g.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, &NetworkError{Op: "query " + collection, Err: err}
	}
	sort.Strings(ids)

	var docs []Document
	for _, id := range ids {
		doc, err := g.GetDocument(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if q.Field != "" && !matches(doc, q) {
			continue
		}
		docs = append(docs, doc)
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			a := fmt.Sprintf("%v", docs[i].Fields[q.OrderBy])
			b := fmt.Sprintf("%v", docs[j].Fields[q.OrderBy])
			if q.Descending {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func matches(doc Document, q Query) bool {
	if q.ArrayContains {
		want := fmt.Sprintf("%v", q.Value)
		for _, member := range doc.StringSlice(q.Field) {
			if member == want {
				return true
			}
		}
		return false
	}
	value, ok := doc.Fields[q.Field]
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", q.Value)
}

func stringSliceValue(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
