package vectordb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

const (
	fieldContent   = "content"
	fieldFileName  = "file_name"
	fieldMetadata  = "metadata"
	fieldEmbedding = "embedding"
)

// RedisConfig holds connection settings for RedisIndex.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisIndex stores each chunk in a hash and keeps ids in a sorted set
// scored by sequence. Writes go through MULTI/EXEC so they apply atomically.
type RedisIndex struct {
	client *redis.Client
	prefix string
}

// NewRedisIndex connects and pings the server.
func NewRedisIndex(ctx context.Context, cfg RedisConfig) (*RedisIndex, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ragstream:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisIndex{client: client, prefix: cfg.Prefix}, nil
}

func (r *RedisIndex) idsKey() string           { return r.prefix + "ids" }
func (r *RedisIndex) chunkKey(id string) string { return r.prefix + "chunk:" + id }

func (r *RedisIndex) Insert(ctx context.Context, chunks []entities.Chunk) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return r.queueInsert(ctx, pipe, chunks)
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// Replace queues the deletes and inserts in a single MULTI block.
func (r *RedisIndex) Replace(ctx context.Context, fileName string, chunks []entities.Chunk) (int, error) {
	doomed, err := r.idsOf(ctx, fileName)
	if err != nil {
		return 0, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.queueDelete(ctx, pipe, doomed)
		return r.queueInsert(ctx, pipe, chunks)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace chunks of %s: %w", fileName, err)
	}
	return len(doomed), nil
}

func (r *RedisIndex) queueInsert(ctx context.Context, pipe redis.Pipeliner, chunks []entities.Chunk) error {
	for _, c := range chunks {
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		pipe.HSet(ctx, r.chunkKey(c.ID),
			fieldContent, c.Text,
			fieldFileName, c.Metadata.FileName,
			fieldMetadata, meta,
			fieldEmbedding, emb,
		)
		pipe.ZAdd(ctx, r.idsKey(), redis.Z{Score: float64(parseSeq(c.ID)), Member: c.ID})
	}
	return nil
}

func (r *RedisIndex) queueDelete(ctx context.Context, pipe redis.Pipeliner, ids []string) {
	for _, id := range ids {
		pipe.Del(ctx, r.chunkKey(id))
		pipe.ZRem(ctx, r.idsKey(), id)
	}
}

// idsOf lists the ids stored for fileName.
func (r *RedisIndex) idsOf(ctx context.Context, fileName string) ([]string, error) {
	chunks, err := r.load(ctx, false)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range chunks {
		if c.Metadata.FileName == fileName {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (r *RedisIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	chunks, err := r.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return rank(chunks, embedding, k), nil
}

func (r *RedisIndex) All(ctx context.Context) ([]entities.Chunk, error) {
	return r.load(ctx, false)
}

func (r *RedisIndex) load(ctx context.Context, withEmbedding bool) ([]entities.Chunk, error) {
	ids, err := r.client.ZRange(ctx, r.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing chunk ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.chunkKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}

	chunks := make([]entities.Chunk, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c := entities.Chunk{ID: ids[i], Text: fields[fieldContent]}
		if err := json.Unmarshal([]byte(fields[fieldMetadata]), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", c.ID, err)
		}
		if withEmbedding {
			if err := json.Unmarshal([]byte(fields[fieldEmbedding]), &c.Embedding); err != nil {
				return nil, fmt.Errorf("decoding embedding of %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (r *RedisIndex) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.idsKey()).Result()
	return int(n), err
}

func (r *RedisIndex) NextSeq(ctx context.Context) (int, error) {
	top, err := r.client.ZRevRangeWithScores(ctx, r.idsKey(), 0, 0).Result()
	if err != nil {
		return 0, err
	}
	if len(top) == 0 {
		return 0, nil
	}
	return int(top[0].Score) + 1, nil
}

func (r *RedisIndex) DeleteWhere(ctx context.Context, fileName string) (int, error) {
	doomed, err := r.idsOf(ctx, fileName)
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.queueDelete(ctx, pipe, doomed)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	return len(doomed), nil
}

func (r *RedisIndex) Reset(ctx context.Context) error {
	ids, err := r.client.ZRange(ctx, r.idsKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("listing chunk ids: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, r.chunkKey(id))
		}
		pipe.Del(ctx, r.idsKey())
		return nil
	})
	return err
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}
