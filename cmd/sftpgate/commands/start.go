package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/dataexchange/sftpgate/internal/logger"
	"github.com/dataexchange/sftpgate/pkg/backend"
	"github.com/dataexchange/sftpgate/pkg/backend/local"
	s3backend "github.com/dataexchange/sftpgate/pkg/backend/s3"
	"github.com/dataexchange/sftpgate/pkg/config"
	"github.com/dataexchange/sftpgate/pkg/identity"
	"github.com/dataexchange/sftpgate/pkg/metrics"
	"github.com/dataexchange/sftpgate/pkg/sftpd"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SFTP gateway",
	Long: `Start the SFTP gateway with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sftpgate/config.yaml.

Examples:
  # Start with default config location
  sftpgate start

  # Start with custom config file
  sftpgate start --config /etc/sftpgate/config.yaml

  # Start with environment variable overrides
  SFTPGATE_LOGGING_LEVEL=DEBUG sftpgate start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("storage backend ready",
		logger.Backend(store.Name()), "mode", cfg.Storage.Mode)

	users, err := identity.LoadUsers(userSpecs(cfg.Users))
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	userStore, err := identity.NewConfigUserStore(users)
	if err != nil {
		return fmt.Errorf("building user store: %w", err)
	}
	logger.Info("users loaded", "count", len(users))

	tracker := sftpd.MultiTracker{sftpd.NewLogTracker()}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		tracker = append(tracker, collector)
		metricsSrv = metrics.NewServer(collector, fmt.Sprintf(":%d", cfg.Metrics.Port))
	}

	srv, err := sftpd.New(ctx, sftpd.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, store, identity.NewLocalAuthProvider(userStore), users, tracker)
	if err != nil {
		return err
	}

	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error("metrics server error", logger.Err(err))
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("gateway is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", logger.Err(err))
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Error("metrics shutdown error", logger.Err(err))
			}
		}
		if err := <-serverDone; err != nil {
			return err
		}
		logger.Info("gateway stopped gracefully")
		return nil

	case err := <-serverDone:
		signal.Stop(sigChan)
		if metricsSrv != nil {
			metricsSrv.Shutdown(ctx)
		}
		return err
	}
}

// buildBackend constructs the storage backend the configured mode
// names, wiring assume-role credentials in front of S3 access when
// configured.
func buildBackend(ctx context.Context, cfg *config.Config) (backend.Backend, error) {
	switch cfg.Storage.Mode {
	case config.StorageModeLocal:
		store, err := local.New(cfg.Storage.BaseFolder)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		return store, nil

	case config.StorageModeS3:
		var creds aws.CredentialsProvider
		if ra := cfg.RoleAssumption; ra != nil {
			creds = s3backend.NewAssumeRoleProvider(s3backend.RoleConfig{
				AccessKey:   ra.AccessKey,
				SecretKey:   ra.SecretKey,
				RoleARN:     ra.RoleARN,
				SessionName: ra.SessionName,
				Region:      cfg.Storage.Region,
			})
			logger.Info("role assumption enabled", "role_arn", ra.RoleARN)
		}
		store, err := s3backend.NewFromConfig(ctx, s3backend.Config{
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			Endpoint:       cfg.Storage.Endpoint,
			ForcePathStyle: cfg.Storage.ForcePathStyle,
		}, creds)
		if err != nil {
			return nil, fmt.Errorf("initializing s3 storage: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Storage.Mode)
	}
}

func userSpecs(users []config.UserConfig) []identity.UserSpec {
	specs := make([]identity.UserSpec, len(users))
	for i, u := range users {
		specs[i] = identity.UserSpec{
			Username:     u.Username,
			Password:     u.Password,
			PasswordHash: u.PasswordHash,
			PublicKey:    u.PublicKey,
		}
	}
	return specs
}
