// Package provision sets up the cloud resources the warehouse depends on:
// the S3 access role, the Redshift cluster itself, and the inbound network
// rule that makes the cluster reachable.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

const (
	s3ReadOnlyPolicyARN = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"

	// Trust policy allowing Redshift to assume the role.
	redshiftAssumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Action": "sts:AssumeRole",
      "Effect": "Allow",
      "Principal": {
        "Service": "redshift.amazonaws.com"
      }
    }
  ]
}`
)

// IAMAPI is the subset of the IAM API used for role management.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// RoleManager ensures the warehouse access role exists and resolves its ARN.
type RoleManager struct {
	client IAMAPI
	logger *zap.Logger
}

// NewRoleManager creates a role manager backed by the given IAM client.
func NewRoleManager(client IAMAPI, logger *zap.Logger) *RoleManager {
	return &RoleManager{
		client: client,
		logger: logger,
	}
}

// EnsureRole creates the access role with the Redshift trust policy,
// attaches read-only S3 access and returns the role ARN. An already
// existing role is reused.
func (m *RoleManager) EnsureRole(ctx context.Context, roleName string) (string, error) {
	_, err := m.client.CreateRole(ctx, &iam.CreateRoleInput{
		Path:                     aws.String("/"),
		RoleName:                 aws.String(roleName),
		Description:              aws.String("Allows Redshift clusters to call AWS services on your behalf."),
		AssumeRolePolicyDocument: aws.String(redshiftAssumeRolePolicy),
	})
	if err != nil {
		var alreadyExists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &alreadyExists) {
			return "", apperrors.NewProvision(fmt.Sprintf("create role %s", roleName), err)
		}
		m.logger.Info("role already exists, continuing", zap.String("role", roleName))
	}

	_, err = m.client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(s3ReadOnlyPolicyARN),
	})
	if err != nil {
		return "", apperrors.NewProvision(fmt.Sprintf("attach policy %s to role %s", s3ReadOnlyPolicyARN, roleName), err)
	}

	return m.RoleARN(ctx, roleName)
}

// RoleARN resolves the ARN of an existing role.
func (m *RoleManager) RoleARN(ctx context.Context, roleName string) (string, error) {
	out, err := m.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		return "", apperrors.NewProvision(fmt.Sprintf("get role %s", roleName), err)
	}
	return aws.ToString(out.Role.Arn), nil
}
