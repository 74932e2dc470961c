// Command provision spins up the warehouse: it ensures the S3 access
// role, creates the Redshift cluster and waits for it to become
// available, opens inbound access on the warehouse port, and finally
// smoke-tests a database connection.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
	"github.com/talerngpong/cloud-datawarehouse/internal/provision"
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
	opener := provision.NewIngressOpener(ec2.NewFromConfig(awsCfg), logger)

	roleARN, err := roles.EnsureRole(ctx, cfg.Cluster.IAMRoleName)
	if err != nil {
		logger.Fatal("failed to ensure warehouse role", zap.Error(err))
	}
	logger.Info("warehouse role ready", zap.String("arn", roleARN))

	start := time.Now()
	meta, err := clusters.CreateAndWait(ctx, cfg.Cluster, roleARN)
	if err != nil {
		logger.Fatal("failed to provision cluster", zap.Error(err))
	}
	logger.Info("cluster available",
		zap.String("endpoint", meta.Endpoint),
		zap.String("vpc", meta.VPCID),
		zap.Duration("took", time.Since(start)),
	)

	if err := opener.OpenIngress(ctx, meta.VPCID, cfg.Cluster.DBPort); err != nil {
		logger.Fatal("failed to open warehouse ingress", zap.Error(err))
	}

	if err := verifyConnection(ctx, cfg, meta.Endpoint); err != nil {
		logger.Fatal("connectivity check failed", zap.Error(err))
	}
	logger.Info("verified database connectivity",
		zap.String("endpoint", meta.Endpoint),
		zap.String("db", cfg.Cluster.DBName),
		zap.Int("port", cfg.Cluster.DBPort),
	)
}

// verifyConnection opens and immediately closes a connection to the
// cluster database. The handle is released on every path.
func verifyConnection(ctx context.Context, cfg *config.Config, endpoint string) error {
	db, err := sql.Open("postgres", cfg.ConnString(endpoint))
	if err != nil {
		return err
	}
	defer db.Close()

	return db.PingContext(ctx)
}
