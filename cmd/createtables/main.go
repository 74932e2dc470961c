// Command createtables resets the warehouse schema: it drops the fact,
// dimension and staging tables, then creates them fresh.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
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

	clusters := provision.NewClusterManager(redshift.NewFromConfig(awsCfg), logger)
	endpoint, err := clusters.Endpoint(ctx, cfg.Cluster.ClusterIdentifier)
	if err != nil {
		logger.Fatal("failed to resolve cluster endpoint", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.ConnString(endpoint))
	if err != nil {
		logger.Fatal("failed to open database connection", zap.Error(err))
	}
	defer db.Close()

	runner := warehouse.NewRunner(db, logger)

	if err := runner.Run(ctx, warehouse.DropTableStatements); err != nil {
		logger.Fatal("failed to drop tables", zap.Error(err))
	}
	if err := runner.Run(ctx, warehouse.CreateTableStatements); err != nil {
		logger.Fatal("failed to create tables", zap.Error(err))
	}
	logger.Info("warehouse schema reset")
}
