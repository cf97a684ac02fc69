package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maiahq/maia/internal/config"
	"github.com/maiahq/maia/internal/logger"
	"github.com/maiahq/maia/internal/metrics"
	"github.com/maiahq/maia/pkg/agent"
	"github.com/maiahq/maia/pkg/apikey"
	"github.com/maiahq/maia/pkg/credential"
	"github.com/maiahq/maia/pkg/gateway"
	"github.com/maiahq/maia/pkg/orchestrator"
	"github.com/maiahq/maia/pkg/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Maia server",
	Long: `Start the Maia HTTP server. The server exposes chat, login, session
administration, health, and metrics endpoints and keeps OAuth credentials
for integrated tools fresh across agent turns.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	zl.Info().Str("version", version).Msg("Starting Maia")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()

	accounts, err := buildAccounts(cfg.Auth.Accounts)
	if err != nil {
		return err
	}
	authority := apikey.New(apikey.Config{
		Keys:     cfg.Auth.APIKeys,
		Accounts: accounts,
		Logger:   zl,
	})
	m.KeysActive.Set(float64(authority.Count()))

	backend, err := session.NewRedisBackend(ctx, session.RedisConfig{
		URL:            cfg.Sessions.RedisURL,
		ConnectTimeout: time.Duration(cfg.Sessions.ConnectTimeout) * time.Second,
		Logger:         zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session backend: %w", err)
	}
	defer backend.Close()
	backend.StartReconnectLoop(ctx)

	store, err := session.NewStore(session.Config{
		Backend: backend,
		TTL:     time.Duration(cfg.Sessions.TTLDays) * 24 * time.Hour,
		Logger:  zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	credentials := credential.BuildStores(providerSpecs(cfg.Providers), zl)
	for _, cred := range credentials {
		zl.Info().Str("state", cred.Describe()).Msg("Credential store ready")
	}

	builder, err := agent.NewOpenAIBuilder(agent.OpenAIConfig{
		APIKey:  cfg.Agent.APIKey,
		BaseURL: cfg.Agent.BaseURL,
		Model:   cfg.Agent.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize agent client: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Authority:    authority,
		Store:        store,
		Fallback:     session.NewFallback(),
		Credentials:  credentials,
		Builder:      builder,
		SystemPrompt: cfg.Agent.SystemPrompt,
		Metrics:      m,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Orchestrator: orch,
		Authority:    authority,
		Metrics:      m,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zl.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("Gateway shutdown error")
	}

	return nil
}

// buildAccounts hashes any plaintext passwords from the config at startup so
// the authority only ever holds bcrypt hashes.
func buildAccounts(configured []config.Account) ([]apikey.Account, error) {
	accounts := make([]apikey.Account, 0, len(configured))
	for _, a := range configured {
		hash := []byte(a.PasswordHash)
		if len(hash) == 0 {
			var err error
			hash, err = apikey.HashPassword(a.Password)
			if err != nil {
				return nil, fmt.Errorf("account %q: %w", a.Username, err)
			}
		}
		accounts = append(accounts, apikey.Account{Username: a.Username, PasswordHash: hash})
	}
	return accounts, nil
}

func providerSpecs(configured []config.ProviderConfig) []credential.Spec {
	specs := make([]credential.Spec, 0, len(configured))
	for _, p := range configured {
		specs = append(specs, credential.Spec{
			Name:         p.Name,
			Enabled:      p.Enabled,
			TokenFile:    p.TokenFile,
			TokenURL:     p.TokenURL,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
		})
	}
	return specs
}
