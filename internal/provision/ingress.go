package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

const duplicatePermissionCode = "InvalidPermission.Duplicate"

// EC2API is the subset of the EC2 API used to open warehouse ingress.
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

// IngressOpener authorizes inbound TCP traffic to the warehouse port on
// the VPC's default security group.
type IngressOpener struct {
	client EC2API
	logger *zap.Logger
}

// NewIngressOpener creates an ingress opener backed by the given EC2
// client.
func NewIngressOpener(client EC2API, logger *zap.Logger) *IngressOpener {
	return &IngressOpener{
		client: client,
		logger: logger,
	}
}

// OpenIngress allows inbound TCP on port from anywhere on the VPC's
// default security group. The group is selected by its "default" name
// within the VPC, not by list position. An already existing rule counts
// as success.
func (o *IngressOpener) OpenIngress(ctx context.Context, vpcID string, port int) error {
	group, err := o.defaultSecurityGroup(ctx, vpcID)
	if err != nil {
		return err
	}

	_, err = o.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: group.GroupId,
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(int32(port)),
				ToPort:     aws.Int32(int32(port)),
				IpRanges: []ec2types.IpRange{
					{CidrIp: aws.String("0.0.0.0/0")},
				},
			},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == duplicatePermissionCode {
			o.logger.Info("ingress rule already present",
				zap.String("group", aws.ToString(group.GroupId)),
				zap.Int("port", port),
			)
			return nil
		}
		return apperrors.NewProvision(
			fmt.Sprintf("authorize ingress on group %s port %d", aws.ToString(group.GroupId), port), err)
	}

	o.logger.Info("opened warehouse ingress",
		zap.String("vpc", vpcID),
		zap.String("group", aws.ToString(group.GroupId)),
		zap.Int("port", port),
	)
	return nil
}

func (o *IngressOpener) defaultSecurityGroup(ctx context.Context, vpcID string) (*ec2types.SecurityGroup, error) {
	out, err := o.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{"default"}},
		},
	})
	if err != nil {
		return nil, apperrors.NewProvision(fmt.Sprintf("describe security groups in vpc %s", vpcID), err)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, apperrors.NewProvision(fmt.Sprintf("no default security group in vpc %s", vpcID), nil)
	}
	return &out.SecurityGroups[0], nil
}
