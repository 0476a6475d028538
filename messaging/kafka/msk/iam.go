// Package msk provides AWS MSK IAM authentication for franz-go clients.
package msk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/aws"
	"go.uber.org/zap"
)

const userAgent = "eventstream/franz-go"

// IAMMechanism returns a SASL mechanism that signs with the credentials of the
// default AWS session chain (env, shared config, instance role).
func IAMMechanism(logger *zap.Logger) (sasl.Mechanism, error) {
	sess, err := session.NewSession()
	if err != nil {
		logger.Error("unable to initialize aws session", zap.Error(err))
		return nil, fmt.Errorf("msk: new aws session: %w", err)
	}
	return aws.ManagedStreamingIAM(func(ctx context.Context) (aws.Auth, error) {
		val, err := sess.Config.Credentials.GetWithContext(ctx)
		if err != nil {
			logger.Error("failed to resolve aws credentials", zap.Error(err))
			return aws.Auth{}, err
		}
		return aws.Auth{
			AccessKey:    val.AccessKeyID,
			SecretKey:    val.SecretAccessKey,
			SessionToken: val.SessionToken,
			UserAgent:    userAgent,
		}, nil
	}), nil
}
