package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUpdateRetries bounds optimistic retries when a watched document changes
// between read and write.
const maxUpdateRetries = 10

// RedisStore keeps documents in Redis.
//
// Layout under the key prefix:
//
//	doc:<path>                 JSON document
//	col:<collection>           sorted set of ids scored by insertion sequence
//	idx:<collection>:<field>   sorted set of ids scored by an indexed field
//	seq                        insertion sequence counter
//	chg:<collection>           Pub/Sub channel announcing changed paths
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore wraps a connected client. prefix namespaces every key.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// NewRedisClient creates a Redis client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) docKey(path string) string { return s.prefix + "doc:" + path }
func (s *RedisStore) colKey(collection string) string {
	return s.prefix + "col:" + collection
}
func (s *RedisStore) idxKey(collection, field string) string {
	return s.prefix + "idx:" + collection + ":" + field
}
func (s *RedisStore) channel(collection string) string { return s.prefix + "chg:" + collection }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, path string) (Document, error) {
	_, id, err := Split(path)
	if err != nil {
		return Document{}, err
	}
	raw, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return Document{Path: path, ID: id, Fields: fields}, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, path string, fields Fields) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}
	norm, err := normalize(fields)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	seq, err := s.client.Incr(ctx, s.prefix+"seq").Result()
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.writeDoc(ctx, pipe, path, collection, id, norm); err != nil {
			return err
		}
		pipe.ZAddNX(ctx, s.colKey(collection), &redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.announce(ctx, collection, path)
	return nil
}

// writeDoc queues the document body and its index entries.
func (s *RedisStore) writeDoc(ctx context.Context, pipe redis.Pipeliner, path, collection, id string, fields Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.docKey(path), raw, 0)
	for _, field := range indexedFields {
		if score, ok := indexScore(fields[field]); ok {
			pipe.ZAdd(ctx, s.idxKey(collection, field), &redis.Z{Score: score, Member: id})
		} else {
			pipe.ZRem(ctx, s.idxKey(collection, field), id)
		}
	}
	return nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, path string, fields Fields) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}
	patch, err := normalize(fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	key := s.docKey(path)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeFields(raw)
		if err != nil {
			return err
		}
		for k, v := range patch {
			current[k] = v
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.writeDoc(ctx, pipe, path, collection, id, current)
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		s.announce(ctx, collection, path)
		return nil
	}
	return fmt.Errorf("update %s: too much contention: %w", path, err)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(path))
		pipe.ZRem(ctx, s.colKey(collection), id)
		for _, field := range indexedFields {
			pipe.ZRem(ctx, s.idxKey(collection, field), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.announce(ctx, collection, path)
	return nil
}

// Add implements Store.
func (s *RedisStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, Join(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, collection string) ([]Document, error) {
	ids, err := s.client.ZRange(ctx, s.colKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return s.load(ctx, collection, ids)
}

// Run implements Store.
func (s *RedisStore) Run(ctx context.Context, q Query) ([]Document, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	if q.OrderBy == "" {
		docs, err := s.List(ctx, q.Collection)
		if err != nil {
			return nil, err
		}
		return orderDocuments(docs, q), nil
	}

	stop := int64(-1)
	if q.Limit > 0 {
		stop = int64(q.Limit) - 1
	}
	key := s.idxKey(q.Collection, q.OrderBy)
	var ids []string
	var err error
	if q.Descending {
		ids, err = s.client.ZRevRange(ctx, key, 0, stop).Result()
	} else {
		ids, err = s.client.ZRange(ctx, key, 0, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return s.load(ctx, q.Collection, ids)
}

// load fetches documents by id, skipping ones deleted since the id was read.
func (s *RedisStore) load(ctx context.Context, collection string, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(Join(collection, id))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(ids))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", keys[i], err)
		}
		docs = append(docs, Document{Path: Join(collection, ids[i]), ID: ids[i], Fields: fields})
	}
	return docs, nil
}

func (s *RedisStore) announce(ctx context.Context, collection, path string) {
	if err := s.client.Publish(ctx, s.channel(collection), path).Err(); err != nil {
		s.logger.Warn("failed to announce change",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// Subscribe implements Store. ctx only bounds the initial registration; the
// subscription lives until Cancel.
func (s *RedisStore) Subscribe(ctx context.Context, q Query, fn func([]Document, error)) (Subscription, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, s.channel(q.Collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w := newWatcher(q, fn, func() {
		cancel()
		_ = pubsub.Close()
	})

	docs, err := s.Run(runCtx, q)
	w.deliver(docs, err)

	go s.watch(runCtx, w, pubsub.Channel())
	return w, nil
}

// watch re-runs the query after change announcements. Announcements that
// pile up while a query runs collapse into one re-run.
func (s *RedisStore) watch(ctx context.Context, w *watcher, changes <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
		}

	drain:
		for {
			select {
			case _, ok := <-changes:
				if !ok {
					return
				}
			default:
				break drain
			}
		}

		if w.isClosed() {
			return
		}
		docs, err := s.Run(ctx, w.query)
		if ctx.Err() != nil {
			return
		}
		w.deliver(docs, err)
	}
}
