// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager fetches a secret as a flat string map
type SecretsManager interface {
	GetSecret(ctx context.Context, secretARN string) (map[string]string, error)
}

// secretsClient is the subset of *secretsmanager.Client used here
type secretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsClient
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsManager creates a Secrets Manager client from the default AWS
// credential chain
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newAWSSecretsManager(client secretsClient, opts AWSSecretsManagerOptions) *AWSSecretsManager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS_MANAGER] ", log.LstdFlags)
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSSecretsManager{
		client: client,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}
}

// GetSecret retrieves a secret. JSON object secrets are returned as-is (non
// string values are rendered with %v); any other secret string is returned
// under the "value" key.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[secretARN]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	s.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskARN(secretARN))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	value := parseSecret(*result.SecretString)

	s.mu.Lock()
	s.cache[secretARN] = &secretCacheEntry{
		value:     value,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return value, nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(secretARN string) {
	s.mu.Lock()
	delete(s.cache, secretARN)
	s.mu.Unlock()
}

func parseSecret(raw string) map[string]string {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return map[string]string{"value": raw}
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case float64:
			out[k] = fmt.Sprintf("%.0f", tv)
		default:
			out[k] = fmt.Sprintf("%v", tv)
		}
	}
	return out
}

// ResolvePersistenceURL returns the persistence URL, fetching it from sm when
// a secret ARN is configured. The secret may carry a "url" field, be a bare
// URL string, or use the RDS layout (engine, host, port, username, password,
// dbname).
func ResolvePersistenceURL(ctx context.Context, cfg PersistenceConfig, sm SecretsManager) (string, error) {
	if cfg.SecretARN == "" {
		return cfg.URL, nil
	}
	if sm == nil {
		return "", fmt.Errorf("persistence secret configured but no secrets manager available")
	}

	secret, err := sm.GetSecret(ctx, cfg.SecretARN)
	if err != nil {
		return "", err
	}

	if v := secret["url"]; v != "" {
		return v, nil
	}
	if v := secret["value"]; v != "" {
		return v, nil
	}
	if secret["host"] != "" && secret["username"] != "" {
		return rdsURL(secret), nil
	}
	return "", fmt.Errorf("secret %s does not describe a persistence URL", maskARN(cfg.SecretARN))
}

func rdsURL(secret map[string]string) string {
	scheme := secret["engine"]
	switch scheme {
	case "", "postgresql", "aurora-postgresql":
		scheme = "postgres"
	}
	port := secret["port"]
	if port == "" {
		port = "5432"
	}
	sslMode := secret["sslmode"]
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(secret["username"], secret["password"]),
		Host:     net.JoinHostPort(secret["host"], port),
		Path:     "/" + secret["dbname"],
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}
