package provision

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talerngpong/cloud-datawarehouse/internal/config"
	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

type fakeRedshift struct {
	createErr error

	statuses  []string
	describes int

	createInput *redshift.CreateClusterInput
}

func (f *fakeRedshift) CreateCluster(_ context.Context, params *redshift.CreateClusterInput, _ ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createInput = params
	return &redshift.CreateClusterOutput{}, nil
}

func (f *fakeRedshift) DescribeClusters(_ context.Context, params *redshift.DescribeClustersInput, _ ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	status := f.statuses[len(f.statuses)-1]
	if f.describes < len(f.statuses) {
		status = f.statuses[f.describes]
	}
	f.describes++

	return &redshift.DescribeClustersOutput{
		Clusters: []redshifttypes.Cluster{
			{
				ClusterIdentifier: params.ClusterIdentifier,
				ClusterStatus:     aws.String(status),
				Endpoint: &redshifttypes.Endpoint{
					Address: aws.String("sparkify.abc123.us-west-2.redshift.amazonaws.com"),
				},
				IamRoles: []redshifttypes.ClusterIamRole{
					{IamRoleArn: aws.String("arn:aws:iam::123456789012:role/sparkifyRole")},
				},
				VpcId: aws.String("vpc-0a1b2c"),
			},
		},
	}, nil
}

func testClusterConfig() config.ClusterConfig {
	return config.ClusterConfig{
		DBName:            "sparkify",
		DBUser:            "admin",
		DBPassword:        "secret",
		DBPort:            5439,
		ClusterType:       "multi-node",
		NumNodes:          4,
		NodeType:          "dc2.large",
		ClusterIdentifier: "sparkify-cluster",
		IAMRoleName:       "sparkifyRole",
	}
}

func newTestManager(client RedshiftAPI) (*ClusterManager, *[]time.Duration) {
	mgr := NewClusterManager(client, zap.NewNop())
	slept := &[]time.Duration{}
	mgr.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return mgr, slept
}

func TestCreateAndWait_PollsUntilAvailable(t *testing.T) {
	client := &fakeRedshift{statuses: []string{"creating", "creating", "available"}}
	mgr, slept := newTestManager(client)

	meta, err := mgr.CreateAndWait(context.Background(), testClusterConfig(), "arn:aws:iam::123456789012:role/sparkifyRole")

	require.NoError(t, err)
	assert.Equal(t, "sparkify.abc123.us-west-2.redshift.amazonaws.com", meta.Endpoint)
	assert.Equal(t, "arn:aws:iam::123456789012:role/sparkifyRole", meta.RoleARN)
	assert.Equal(t, "vpc-0a1b2c", meta.VPCID)
	assert.Equal(t, 3, client.describes)
	assert.Equal(t, []time.Duration{defaultPollInterval, defaultPollInterval}, *slept)

	require.NotNil(t, client.createInput)
	assert.Equal(t, "sparkify-cluster", aws.ToString(client.createInput.ClusterIdentifier))
	assert.Equal(t, int32(4), aws.ToInt32(client.createInput.NumberOfNodes))
	assert.Equal(t, []string{"arn:aws:iam::123456789012:role/sparkifyRole"}, client.createInput.IamRoles)
}

func TestWaitAvailable_StatusCompareIsCaseInsensitive(t *testing.T) {
	for _, status := range []string{"available", "AVAILABLE", "Available"} {
		t.Run(status, func(t *testing.T) {
			client := &fakeRedshift{statuses: []string{status}}
			mgr, slept := newTestManager(client)

			_, err := mgr.WaitAvailable(context.Background(), "sparkify-cluster")

			require.NoError(t, err)
			assert.Empty(t, *slept)
		})
	}
}

func TestWaitAvailable_NonTerminalStatusesKeepPolling(t *testing.T) {
	client := &fakeRedshift{statuses: []string{"creating", "deleting", "modifying", "available"}}
	mgr, _ := newTestManager(client)

	_, err := mgr.WaitAvailable(context.Background(), "sparkify-cluster")

	require.NoError(t, err)
	assert.Equal(t, 4, client.describes)
}

func TestWaitAvailable_MaxAttemptsExhausted(t *testing.T) {
	client := &fakeRedshift{statuses: []string{"creating"}}
	mgr, slept := newTestManager(client)
	mgr.MaxAttempts = 3

	_, err := mgr.WaitAvailable(context.Background(), "sparkify-cluster")

	require.Error(t, err)
	assert.True(t, apperrors.IsProvision(err))
	assert.Equal(t, 3, client.describes)
	assert.Len(t, *slept, 2)
}

func TestWaitAvailable_ContextCancelled(t *testing.T) {
	client := &fakeRedshift{statuses: []string{"creating"}}
	mgr, _ := newTestManager(client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mgr.WaitAvailable(ctx, "sparkify-cluster")

	require.Error(t, err)
	assert.True(t, apperrors.IsProvision(err))
}

func TestCreateAndWait_SecondCreateFaultSurfaces(t *testing.T) {
	client := &fakeRedshift{createErr: &redshifttypes.ClusterAlreadyExistsFault{}}
	mgr, _ := newTestManager(client)

	_, err := mgr.CreateAndWait(context.Background(), testClusterConfig(), "arn:aws:iam::123456789012:role/sparkifyRole")

	require.Error(t, err)
	assert.True(t, apperrors.IsProvision(err))
	assert.Equal(t, 0, client.describes)
}

func TestEndpoint(t *testing.T) {
	client := &fakeRedshift{statuses: []string{"available"}}
	mgr, _ := newTestManager(client)

	endpoint, err := mgr.Endpoint(context.Background(), "sparkify-cluster")

	require.NoError(t, err)
	assert.Equal(t, "sparkify.abc123.us-west-2.redshift.amazonaws.com", endpoint)
}
