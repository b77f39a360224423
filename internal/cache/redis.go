package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const articleKeyPattern = "article:*"

func articleKey(id string) string {
	return "article:" + id
}

var _ ArticleCache = (*RedisArticleCache)(nil)

type RedisArticleCache struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisArticleCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Protocol: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisArticleCache(client, cfg.TTL), nil
}

func NewRedisArticleCache(client *redis.Client, ttl time.Duration) *RedisArticleCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisArticleCache{client: client, encoder: compress.NewGZip(), ttl: ttl}
}

func (r *RedisArticleCache) GetArticle(ctx context.Context, id string) (*ArticleEntry, error) {
	buf, err := r.client.Get(ctx, articleKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	decoded, err := r.encoder.Decode(buf)
	if err != nil {
		return nil, err
	}

	entry := &ArticleEntry{}
	if err := json.Unmarshal(decoded, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *RedisArticleCache) SetArticle(ctx context.Context, id string, entry *ArticleEntry) error {
	marshal, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	encoded, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, articleKey(id), encoded, r.ttl).Err()
}

func (r *RedisArticleCache) DeleteArticle(ctx context.Context, id string) error {
	return r.client.Del(ctx, articleKey(id)).Err()
}

// Flush removes every cached article, in batches of scanned keys.
func (r *RedisArticleCache) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, articleKeyPattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}

	return nil
}
