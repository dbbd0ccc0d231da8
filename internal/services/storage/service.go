package storage

import (
	"time"

	"github.com/phambaophuc/uploads-im-client/internal/config"
	"github.com/redis/go-redis/v9"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// StorageService keeps upload results in redis and archives originals to
// Supabase Storage. Either backend may be absent; its operations then become
// no-ops.
type StorageService struct {
	sbClient      *storage_go.Client
	redisClient   *redis.Client
	bucket        string
	cacheDuration time.Duration
	logger        *zap.Logger
}

func NewStorageService(cfg *config.Config, logger *zap.Logger) *StorageService {
	s := &StorageService{
		bucket:        cfg.Supabase.BUCKET,
		cacheDuration: cfg.Storage.CacheDuration,
		logger:        logger,
	}

	if cfg.Supabase.Enabled() {
		s.sbClient = storage_go.NewClient(cfg.Supabase.URL+"/storage/v1", cfg.Supabase.KEY, nil)
	}

	if cfg.Redis.Enabled {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	return s
}

func (s *StorageService) CacheEnabled() bool {
	return s.redisClient != nil
}

func (s *StorageService) ArchiveEnabled() bool {
	return s.sbClient != nil
}

func (s *StorageService) Close() error {
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}
