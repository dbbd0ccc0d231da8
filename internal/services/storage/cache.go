package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "uploadsim:"

// GetFromCache returns nil, nil on a miss or when caching is disabled.
func (s *StorageService) GetFromCache(ctx context.Context, cacheKey string) (*uploadsim.UploadedImage, error) {
	if s.redisClient == nil {
		return nil, nil
	}

	data, err := s.redisClient.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get error: %w", err)
	}

	var img uploadsim.UploadedImage
	if err := json.Unmarshal(data, &img); err != nil {
		// A stale entry in an old format is treated as a miss.
		s.logger.Warn("Discarding unreadable cache entry", zap.String("cache_key", cacheKey), zap.Error(err))
		return nil, nil
	}
	return &img, nil
}

func (s *StorageService) SetCache(ctx context.Context, cacheKey string, img *uploadsim.UploadedImage) error {
	if s.redisClient == nil {
		return nil
	}

	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := s.redisClient.Set(ctx, cacheKey, data, s.cacheDuration).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// GenerateCacheKey hashes the file content together with the request URL the
// options produce, so the same bytes uploaded with different options or to a
// different host never share an entry.
func GenerateCacheKey(content io.Reader, options uploadsim.UploadOptions) (string, error) {
	target, err := uploadsim.BuildUploadURL(options)
	if err != nil {
		return "", err
	}

	hash := sha256.New()
	hash.Write([]byte(target.String()))
	hash.Write([]byte{0})
	if _, err := io.Copy(hash, content); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash.Sum(nil)), nil
}

func (s *StorageService) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	if s.redisClient == nil {
		return map[string]interface{}{"enabled": false}, nil
	}

	keys, err := s.redisClient.Keys(ctx, cacheKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	dbSize, err := s.redisClient.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":        true,
		"cached_uploads": len(keys),
		"db_keys":        dbSize,
	}, nil
}
