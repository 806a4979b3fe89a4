package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"go.uber.org/zap"
)

// AWSSecretsManagerStorageConfig holds the configuration for AWS Secrets Manager storage.
type AWSSecretsManagerStorageConfig struct {
	// Region specifies the AWS region where the secrets are stored
	Region string
	// Prefix is prepended to every secret name, e.g. "fhevm/signatures/"
	Prefix string
}

// AWSSecretsManagerStorage keeps each entry in its own secret.
// Every read fetches the AWSCURRENT version so nothing is cached in memory.
type AWSSecretsManagerStorage struct {
	client secretsmanageriface.SecretsManagerAPI
	config *AWSSecretsManagerStorageConfig
	logger *zap.Logger
}

var _ IStringStorage = (*AWSSecretsManagerStorage)(nil)

// NewAWSSecretsManagerStorage creates a storage backed by AWS Secrets Manager.
//
// Parameters:
//   - cfg: Region and secret name prefix
//   - logger: A zap logger for logging operations and errors
//
// Returns:
//   - *AWSSecretsManagerStorage: A new storage instance
//   - error: An error if the AWS session cannot be created
func NewAWSSecretsManagerStorage(cfg *AWSSecretsManagerStorageConfig, logger *zap.Logger) (*AWSSecretsManagerStorage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSSecretsManagerStorageWithClient(secretsmanager.New(sess), cfg, logger), nil
}

// NewAWSSecretsManagerStorageWithClient creates a storage around an existing client.
func NewAWSSecretsManagerStorageWithClient(
	client secretsmanageriface.SecretsManagerAPI,
	cfg *AWSSecretsManagerStorageConfig,
	logger *zap.Logger,
) *AWSSecretsManagerStorage {
	return &AWSSecretsManagerStorage{client: client, config: cfg, logger: logger}
}

// secretName maps a storage key onto the characters secret names allow.
func (a *AWSSecretsManagerStorage) secretName(key string) string {
	return a.config.Prefix + strings.ReplaceAll(key, ":", "/")
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException
}

func (a *AWSSecretsManagerStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	result, err := a.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(a.secretName(key)),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if isNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get secret: %w", err)
	}
	if result.SecretString == nil {
		return "", false, fmt.Errorf("secret string is nil")
	}
	return *result.SecretString, true, nil
}

func (a *AWSSecretsManagerStorage) SetItem(ctx context.Context, key, value string) error {
	name := a.secretName(key)
	_, err := a.client.PutSecretValueWithContext(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to put secret value: %w", err)
	}

	a.logger.Sugar().Debugw("Creating secret", zap.String("name", name))
	_, err = a.client.CreateSecretWithContext(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("failed to create secret: %w", err)
	}
	return nil
}

func (a *AWSSecretsManagerStorage) RemoveItem(ctx context.Context, key string) error {
	_, err := a.client.DeleteSecretWithContext(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(a.secretName(key)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
