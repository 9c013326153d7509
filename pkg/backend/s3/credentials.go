package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/dataexchange/sftpgate/pkg/backend"
)

// RoleConfig describes the role-assumption handshake: long-lived keys
// identify the gateway to STS, which mints the short-lived session the
// bucket is actually accessed with. The bucket never sees the
// long-lived keys.
type RoleConfig struct {
	AccessKey   string
	SecretKey   string
	RoleARN     string
	SessionName string
	Region      string
}

// NewAssumeRoleProvider builds a cached assume-role credentials
// provider. The cache refreshes sessions before expiry and collapses
// concurrent refreshes into a single STS call, so callers always see a
// complete credential set.
func NewAssumeRoleProvider(cfg RoleConfig) aws.CredentialsProvider {
	static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	stsClient := sts.New(sts.Options{
		Region:      cfg.Region,
		Credentials: static,
	})

	return newRoleProvider(stsClient, cfg)
}

// newRoleProvider is the testable seam: tests pass a fake STS client.
func newRoleProvider(client stscreds.AssumeRoleAPIClient, cfg RoleConfig) aws.CredentialsProvider {
	sessionName := cfg.SessionName
	if sessionName == "" {
		sessionName = "sftpgate"
	}

	assume := stscreds.NewAssumeRoleProvider(client, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})

	return &roleProvider{
		cache:   aws.NewCredentialsCache(assume),
		roleARN: cfg.RoleARN,
	}
}

// roleProvider decorates the credentials cache with domain error
// reporting.
type roleProvider struct {
	cache   *aws.CredentialsCache
	roleARN string
}

func (p *roleProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.cache.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, &backend.CredentialExchangeError{
			RoleARN: p.roleARN,
			Err:     err,
		}
	}
	return creds, nil
}

// Invalidate drops the cached session so the next Retrieve performs a
// fresh exchange, used after an access-denied response that suggests a
// revoked session.
func (p *roleProvider) Invalidate() {
	p.cache.Invalidate()
}

// SessionExpiry reports when the current cached session expires, or
// zero when no session is cached. Surfaced for diagnostics only.
func SessionExpiry(ctx context.Context, p aws.CredentialsProvider) (time.Time, error) {
	creds, err := p.Retrieve(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("retrieving credentials: %w", err)
	}
	if !creds.CanExpire {
		return time.Time{}, nil
	}
	return creds.Expires, nil
}
