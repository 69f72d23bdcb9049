package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/config"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
)

// Open builds the backend named by cfg.StoreBackend and verifies it is reachable.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (KeyValueStore, error) {
	var (
		store KeyValueStore
		err   error
	)

	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		store, err = NewBadgerStore("", cfg.CartTTL, logger)

	case config.StoreBadger:
		store, err = NewBadgerStore(cfg.BadgerDir, cfg.CartTTL, logger)

	case config.StoreRedis:
		client, cerr := NewRedisClient(ctx, cfg.RedisURL)
		if cerr != nil {
			return nil, cerr
		}
		store = NewRedisStore(client, cfg.CartTTL)

	case config.StorePostgres:
		db, cerr := ConnectPostgres(cfg.PostgresDSN)
		if cerr != nil {
			return nil, cerr
		}
		store = NewPostgresStore(db)

	case config.StoreDynamoDB:
		awsCfg, cerr := aws_pkg.LoadAWSConfig(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", cerr)
		}
		store = NewDynamoStore(aws_pkg.NewDynamoDBClient(awsCfg), cfg.DynamoDBTable)

	case config.StoreMongo:
		client, cerr := ConnectMongo(ctx, cfg.MongoURI)
		if cerr != nil {
			return nil, cerr
		}
		store = NewMongoStore(client, cfg.MongoDatabase, cfg.MongoCollection)

	default:
		return nil, fmt.Errorf("unknown cart store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("cart store %s is not reachable: %w", cfg.StoreBackend, err)
	}

	logger.Info("Cart store ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Duration("ttl", cfg.CartTTL),
	)
	return store, nil
}
