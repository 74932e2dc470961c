package provision

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

type fakeEC2 struct {
	groups       []ec2types.SecurityGroup
	describeErr  error
	authorizeErr error

	filters   map[string][]string
	authInput *ec2.AuthorizeSecurityGroupIngressInput
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, params *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	f.filters = map[string][]string{}
	for _, filter := range params.Filters {
		f.filters[aws.ToString(filter.Name)] = filter.Values
	}
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	f.authInput = params
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func defaultGroup() ec2types.SecurityGroup {
	return ec2types.SecurityGroup{
		GroupId:   aws.String("sg-0default"),
		GroupName: aws.String("default"),
	}
}

func TestOpenIngress_AuthorizesWarehousePort(t *testing.T) {
	client := &fakeEC2{groups: []ec2types.SecurityGroup{defaultGroup()}}
	opener := NewIngressOpener(client, zap.NewNop())

	err := opener.OpenIngress(context.Background(), "vpc-0a1b2c", 5439)

	require.NoError(t, err)
	assert.Equal(t, []string{"vpc-0a1b2c"}, client.filters["vpc-id"])
	assert.Equal(t, []string{"default"}, client.filters["group-name"])

	require.NotNil(t, client.authInput)
	assert.Equal(t, "sg-0default", aws.ToString(client.authInput.GroupId))
	perm := client.authInput.IpPermissions[0]
	assert.Equal(t, "tcp", aws.ToString(perm.IpProtocol))
	assert.Equal(t, int32(5439), aws.ToInt32(perm.FromPort))
	assert.Equal(t, int32(5439), aws.ToInt32(perm.ToPort))
	assert.Equal(t, "0.0.0.0/0", aws.ToString(perm.IpRanges[0].CidrIp))
}

func TestOpenIngress_DuplicateRuleIsSuccess(t *testing.T) {
	client := &fakeEC2{
		groups:       []ec2types.SecurityGroup{defaultGroup()},
		authorizeErr: &smithy.GenericAPIError{Code: "InvalidPermission.Duplicate", Message: "rule exists"},
	}
	opener := NewIngressOpener(client, zap.NewNop())

	err := opener.OpenIngress(context.Background(), "vpc-0a1b2c", 5439)

	assert.NoError(t, err)
}

func TestOpenIngress_OtherAuthorizeFaultPropagates(t *testing.T) {
	client := &fakeEC2{
		groups:       []ec2types.SecurityGroup{defaultGroup()},
		authorizeErr: &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"},
	}
	opener := NewIngressOpener(client, zap.NewNop())

	err := opener.OpenIngress(context.Background(), "vpc-0a1b2c", 5439)

	require.Error(t, err)
	assert.True(t, apperrors.IsProvision(err))
}

func TestOpenIngress_NoDefaultGroup(t *testing.T) {
	client := &fakeEC2{}
	opener := NewIngressOpener(client, zap.NewNop())

	err := opener.OpenIngress(context.Background(), "vpc-0a1b2c", 5439)

	require.Error(t, err)
	assert.True(t, apperrors.IsProvision(err))
	assert.Nil(t, client.authInput)
}
