// Command etl runs the full load: COPY statements stage the raw song and
// event data referenced by the published manifests, then INSERT
// statements transform staged rows into the dimensional schema.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
	"github.com/talerngpong/cloud-datawarehouse/internal/manifest"
	"github.com/talerngpong/cloud-datawarehouse/internal/provision"
	"github.com/talerngpong/cloud-datawarehouse/internal/warehouse"
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

	roles := provision.NewRoleManager(iam.NewFromConfig(awsCfg), logger)
	clusters := provision.NewClusterManager(redshift.NewFromConfig(awsCfg), logger)
	publisher := manifest.NewPublisher(s3.NewFromConfig(awsCfg), cfg.Region, logger)

	roleARN, err := roles.RoleARN(ctx, cfg.Cluster.IAMRoleName)
	if err != nil {
		logger.Fatal("failed to resolve warehouse role", zap.Error(err))
	}
	endpoint, err := clusters.Endpoint(ctx, cfg.Cluster.ClusterIdentifier)
	if err != nil {
		logger.Fatal("failed to resolve cluster endpoint", zap.Error(err))
	}

	logManifestSize(ctx, publisher, cfg, cfg.Manifest.SongDataKey, "song data", logger)
	logManifestSize(ctx, publisher, cfg, cfg.Manifest.EventDataKey, "event data", logger)

	db, err := sql.Open("postgres", cfg.ConnString(endpoint))
	if err != nil {
		logger.Fatal("failed to open database connection", zap.Error(err))
	}
	defer db.Close()

	runner := warehouse.NewRunner(db, logger)

	if err := runner.Run(ctx, warehouse.BuildCopyStatements(cfg, roleARN)); err != nil {
		logger.Fatal("failed to load staging tables", zap.Error(err))
	}
	if err := runner.Run(ctx, warehouse.InsertTableStatements); err != nil {
		logger.Fatal("failed to populate dimensional schema", zap.Error(err))
	}
	logger.Info("load complete")
}

// logManifestSize reads a published manifest back and reports how many
// objects the next COPY will ingest. A missing manifest is fatal here
// rather than mid-COPY.
func logManifestSize(ctx context.Context, publisher *manifest.Publisher, cfg *config.Config, key, name string, logger *zap.Logger) {
	m, err := publisher.Fetch(ctx, cfg.Manifest.BucketName, key)
	if err != nil {
		logger.Fatal("failed to read published manifest",
			zap.String("manifest", name),
			zap.Error(err),
		)
	}
	logger.Info("manifest ready for load",
		zap.String("manifest", name),
		zap.Int("entries", len(m.Entries)),
	)
}
