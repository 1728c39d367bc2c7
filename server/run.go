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

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dynconn/connectors/base"
	"dynconn/connectors/config"
	"dynconn/connectors/dynpool"
	"dynconn/connectors/mysql"
	"dynconn/connectors/postgres"
	"dynconn/connectors/registry"
	"dynconn/connectors/storage"
	"dynconn/shared/logger"
)

// Run starts the DynConn service and blocks until SIGINT or SIGTERM.
//
// Configuration comes from the DYNCONN_* environment variables, optionally
// seeded by the YAML file named in DYNCONN_CONFIG_FILE:
//   - DYNCONN_PERSISTENCE_URL: postgres, sqlite, redis, mongodb, s3, gs or
//     azblob location of the durable descriptor store (optional)
//   - DYNCONN_PERSISTENCE_SECRET_ARN: AWS Secrets Manager secret holding it
//   - DYNCONN_JWT_SECRET: HS256 secret; empty disables authentication
func Run() {
	log.Println("Starting DynConn...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.New("dynconn-server")
	lg.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Serve(ctx, cfg, lg); err != nil {
		log.Fatalf("DynConn stopped: %v", err)
	}
	log.Println("DynConn stopped")
}

// Serve builds the registry from cfg, listens on cfg.Addr() and shuts down
// when ctx is done: the listener drains first, then every pool is released
// and the persistence collaborator is closed.
func Serve(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	conns, err := BuildStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	locked := registry.NewLockedStore(conns)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: New(locked, Options{
			RequestTimeout: cfg.Server.RequestTimeout,
			JWTSecret:      cfg.Auth.JWTSecret,
			CORSOrigins:    cfg.Server.CORSOrigins,
			Logger:         lg,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("", "", "DynConn listening", map[string]interface{}{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("listener failed: %w", err)
		}
	case <-ctx.Done():
		lg.Info("", "", "Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("", "", "HTTP shutdown did not complete", map[string]interface{}{"error": err.Error()})
	}
	if err := Release(shutdownCtx, locked); err != nil {
		lg.Error("", "", "Registry release did not complete", map[string]interface{}{"error": err.Error()})
	}
	return serveErr
}

// BuildStore wires the establisher and, when configured, attaches the
// persistence collaborator. Descriptors that fail to re-establish during
// bootstrap are logged; the service still starts with the rest.
func BuildStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*registry.ConnStore, error) {
	settings := dynpool.DefaultSettings()
	settings.MaxOpenConns = cfg.Pool.MaxOpen
	settings.MaxIdleConns = cfg.Pool.MaxIdle
	settings.ConnectTimeout = cfg.Pool.ConnectTimeout

	est := dynpool.NewEstablisher(settings,
		dynpool.WithDialect(postgres.Dialect{SSLMode: cfg.Pool.PostgresSSLMode}),
		dynpool.WithDialect(mysql.Dialect{TLS: cfg.Pool.MySQLTLS}),
	)
	conns := registry.NewConnStore(est)

	persistenceURL, err := resolvePersistenceURL(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if persistenceURL == "" {
		lg.Warn("", "", "No persistence configured; connections live in memory only", nil)
		return conns, nil
	}

	p, err := storage.Open(ctx, persistenceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	resp, err := conns.AttachPersistence(ctx, p)
	switch {
	case err == nil:
		lg.Info("", "", "Persistence attached", map[string]interface{}{"result": resp.Text})
	case errors.Is(err, base.ErrConnFailed) && conns.Persistence() != nil:
		// Message lists full URIs; keep it out of the logs.
		lg.Warn("", "", "Some stored connections could not be re-established", map[string]interface{}{
			"live": conns.Count(),
		})
	default:
		if closeErr := p.Close(); closeErr != nil {
			lg.Warn("", "", "Failed to close persistence", map[string]interface{}{"error": closeErr.Error()})
		}
		return nil, fmt.Errorf("failed to attach persistence: %w", err)
	}
	return conns, nil
}

func resolvePersistenceURL(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Persistence.SecretARN == "" {
		return cfg.Persistence.URL, nil
	}
	sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
		Region: cfg.Persistence.Region,
	})
	if err != nil {
		return "", err
	}
	return config.ResolvePersistenceURL(ctx, cfg.Persistence, sm)
}

// Release disconnects every live pool and closes persistence. Stored
// descriptors are kept so the next start restores them.
func Release(ctx context.Context, locked *registry.LockedStore) error {
	return locked.Do(ctx, func(store *registry.ConnStore) error {
		store.DisconnectAll(context.WithoutCancel(ctx))
		if p := store.Persistence(); p != nil {
			if err := p.Close(); err != nil {
				return fmt.Errorf("failed to close persistence: %w", err)
			}
		}
		return nil
	})
}
