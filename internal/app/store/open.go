package store

import (
	"context"
	"fmt"

	"originchats/internal/configs"
)

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg configs.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case configs.BackendFile:
		return NewFile(cfg.DataDir)
	case configs.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case configs.BackendSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case configs.BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseDSN)
	case configs.BackendS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
