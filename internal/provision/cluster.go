package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

const defaultPollInterval = 5 * time.Second

// RedshiftAPI is the subset of the Redshift API used for cluster
// provisioning and lookup.
type RedshiftAPI interface {
	CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error)
	DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
}

// Metadata is what the rest of the pipeline needs from an available
// cluster.
type Metadata struct {
	Endpoint string
	RoleARN  string
	VPCID    string
}

// ClusterManager creates the warehouse cluster and waits for it to become
// available.
type ClusterManager struct {
	client RedshiftAPI
	logger *zap.Logger

	// PollInterval is how long to wait between status checks.
	PollInterval time.Duration
	// MaxAttempts caps the number of status checks. Zero means wait
	// forever; aborting a stuck run is then up to the operator.
	MaxAttempts int

	sleep func(time.Duration)
}

// NewClusterManager creates a cluster manager with the default 5 second
// poll interval and no attempt cap.
func NewClusterManager(client RedshiftAPI, logger *zap.Logger) *ClusterManager {
	return &ClusterManager{
		client:       client,
		logger:       logger,
		PollInterval: defaultPollInterval,
		sleep:        time.Sleep,
	}
}

// CreateAndWait requests cluster creation and blocks until the cluster
// reports an available status. Creation is not idempotent: a second call
// with the same identifier faults and the fault is surfaced.
func (m *ClusterManager) CreateAndWait(ctx context.Context, cluster config.ClusterConfig, roleARN string) (*Metadata, error) {
	_, err := m.client.CreateCluster(ctx, &redshift.CreateClusterInput{
		ClusterType:   aws.String(cluster.ClusterType),
		NodeType:      aws.String(cluster.NodeType),
		NumberOfNodes: aws.Int32(int32(cluster.NumNodes)),

		DBName:             aws.String(cluster.DBName),
		ClusterIdentifier:  aws.String(cluster.ClusterIdentifier),
		MasterUsername:     aws.String(cluster.DBUser),
		MasterUserPassword: aws.String(cluster.DBPassword),

		IamRoles: []string{roleARN},
	})
	if err != nil {
		return nil, apperrors.NewProvision(fmt.Sprintf("create cluster %s", cluster.ClusterIdentifier), err)
	}

	return m.WaitAvailable(ctx, cluster.ClusterIdentifier)
}

// WaitAvailable polls the cluster status until it compares equal to
// "available" case-insensitively, then returns the cluster metadata.
func (m *ClusterManager) WaitAvailable(ctx context.Context, identifier string) (*Metadata, error) {
	for attempt := 1; ; attempt++ {
		props, err := m.describe(ctx, identifier)
		if err != nil {
			return nil, err
		}

		status := aws.ToString(props.ClusterStatus)
		if strings.EqualFold(status, "available") {
			return metadataFrom(props, identifier)
		}

		m.logger.Info("cluster not available yet",
			zap.String("cluster", identifier),
			zap.String("status", status),
			zap.Duration("wait", m.PollInterval),
		)

		if m.MaxAttempts > 0 && attempt >= m.MaxAttempts {
			return nil, apperrors.NewProvision(
				fmt.Sprintf("cluster %s still %s after %d status checks", identifier, status, attempt), nil)
		}
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewProvision(fmt.Sprintf("wait for cluster %s", identifier), err)
		}
		m.sleep(m.PollInterval)
	}
}

// Endpoint resolves the endpoint address of an existing cluster.
func (m *ClusterManager) Endpoint(ctx context.Context, identifier string) (string, error) {
	props, err := m.describe(ctx, identifier)
	if err != nil {
		return "", err
	}
	if props.Endpoint == nil {
		return "", apperrors.NewProvision(fmt.Sprintf("cluster %s has no endpoint yet", identifier), nil)
	}
	return aws.ToString(props.Endpoint.Address), nil
}

func (m *ClusterManager) describe(ctx context.Context, identifier string) (*redshifttypes.Cluster, error) {
	out, err := m.client.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(identifier),
	})
	if err != nil {
		return nil, apperrors.NewProvision(fmt.Sprintf("describe cluster %s", identifier), err)
	}
	if len(out.Clusters) == 0 {
		return nil, apperrors.NewProvision(fmt.Sprintf("cluster %s not found", identifier), nil)
	}
	return &out.Clusters[0], nil
}

func metadataFrom(props *redshifttypes.Cluster, identifier string) (*Metadata, error) {
	if props.Endpoint == nil {
		return nil, apperrors.NewProvision(fmt.Sprintf("available cluster %s reported no endpoint", identifier), nil)
	}
	if len(props.IamRoles) == 0 {
		return nil, apperrors.NewProvision(fmt.Sprintf("available cluster %s has no attached role", identifier), nil)
	}
	return &Metadata{
		Endpoint: aws.ToString(props.Endpoint.Address),
		RoleARN:  aws.ToString(props.IamRoles[0].IamRoleArn),
		VPCID:    aws.ToString(props.VpcId),
	}, nil
}
