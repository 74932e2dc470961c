// Command manifest discovers the song and event objects in the dataset
// bucket and publishes the two COPY manifests the staging load reads.
package main

import (
	"context"
	"flag"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
	"github.com/talerngpong/cloud-datawarehouse/internal/discovery"
	"github.com/talerngpong/cloud-datawarehouse/internal/manifest"
)

func main() {
	configPath := flag.String("config", "dwh.cfg", "path to the pipeline config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("unable to load AWS config", zap.Error(err))
	}

	cfg, err := config.Load(*configPath, awsCfg.Region)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	client := s3.NewFromConfig(awsCfg)
	svc := discovery.NewService(client, logger)
	publisher := manifest.NewPublisher(client, cfg.Region, logger)

	songs, err := svc.Discover(ctx, cfg.DataSet.BucketName, cfg.DataSet.SongDataPrefix, cfg.DataSet.SongDataPattern)
	if err != nil {
		logger.Fatal("failed to discover song data", zap.Error(err))
	}
	events, err := svc.Discover(ctx, cfg.DataSet.BucketName, cfg.DataSet.LogDataPrefix, cfg.DataSet.LogDataPattern)
	if err != nil {
		logger.Fatal("failed to discover event data", zap.Error(err))
	}

	if err := publisher.Publish(ctx, manifest.Build(songs), cfg.Manifest.BucketName, cfg.Manifest.SongDataKey); err != nil {
		logger.Fatal("failed to publish song data manifest", zap.Error(err))
	}
	if err := publisher.Publish(ctx, manifest.Build(events), cfg.Manifest.BucketName, cfg.Manifest.EventDataKey); err != nil {
		logger.Fatal("failed to publish event data manifest", zap.Error(err))
	}
}
