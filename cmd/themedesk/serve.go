package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"themedesk/internal/ai"
	"themedesk/internal/airtable"
	"themedesk/internal/cache"
	"themedesk/internal/config"
	"themedesk/internal/database"
	"themedesk/internal/handlers"
	"themedesk/internal/mailchimp"
	"themedesk/internal/middleware"
	"themedesk/internal/models"
	"themedesk/internal/notify"
	"themedesk/internal/prompt"
	"themedesk/internal/router"
	"themedesk/internal/storage"
	"themedesk/internal/store"
	"themedesk/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"store", cfg.StoreBackend,
		"timezone", cfg.Timezone,
	)

	themes, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	prompts := prompt.Default()
	if cfg.PersonaFile != "" {
		if prompts, err = prompt.Load(cfg.PersonaFile); err != nil {
			return err
		}
		slog.Info("personas loaded", "file", cfg.PersonaFile)
	}

	// Initialize the AI provider registry with all configured providers.
	aiRegistry := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"openai": {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL, Temperature: cfg.AITemperature},
		"claude": {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL, Temperature: cfg.AITemperature},
	})
	if name, switched := aiRegistry.Fallback(); switched {
		slog.Warn("configured ai provider has no api key, using another",
			"configured", cfg.AIProvider, "active", name)
	}
	slog.Info("ai providers initialized",
		"active", aiRegistry.ActiveName(),
		"available", aiRegistry.Available(),
	)

	notifier := notify.New(notify.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		Reviewer:    cfg.ReviewerEmail,
		Stakeholder: cfg.StakeholderEmail,
	})

	publisher := mailchimp.New(mailchimp.Config{
		APIKey:       cfg.MailchimpAPIKey,
		ServerPrefix: cfg.MailchimpServerPrefix,
		AudienceID:   cfg.MailchimpAudienceID,
		SegmentTags: map[models.Segment]int{
			models.SegmentPreRetiree: cfg.MailchimpTagPreRetiree,
			models.SegmentRetiree:    cfg.MailchimpTagRetiree,
		},
		FromName: cfg.MailchimpFromName,
		ReplyTo:  cfg.MailchimpReplyTo,
	})
	if !publisher.Configured() {
		slog.Warn("mailchimp not configured, push will fail")
	}

	flowCfg := workflow.Config{
		Store:     themes,
		Prompts:   prompts,
		Generator: ai.NewDraftGenerator(aiRegistry),
		Notifier:  notifier,
		Publisher: publisher,
		Location:  cfg.Location,
	}

	// S3 archive of pushed drafts (optional; the app works without it).
	archive, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		return fmt.Errorf("s3 archive: %w", err)
	}
	if archive != nil {
		flowCfg.Archiver = archive
		slog.Info("s3 archive enabled", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("s3 archive not configured, pushed drafts are not archived")
	}

	flow := workflow.New(flowCfg)

	// Regeneration notes in Valkey (optional).
	var notes handlers.Notes
	if cfg.NotesEnabled() {
		valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			return err
		}
		defer valkeyClient.Close()
		notes = cache.NewNoteStore(valkeyClient, cache.DefaultNoteTTL)
	} else {
		slog.Warn("valkey not configured, regeneration notes last one request")
	}

	auth := middleware.NewOperatorAuth(cfg.OperatorUser, cfg.OperatorPasswordHash, cfg.OperatorTOTPSecret)
	r, stopLimiter := router.New(handlers.NewAPI(flow, notes), auth, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		DraftLimit:  cfg.DraftRateLimit,
		DraftWindow: time.Minute,
	})
	defer stopLimiter()

	// WriteTimeout must accommodate draft generation, which waits on the
	// model for up to two minutes.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "month", flow.CurrentMonth())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore returns the configured record store and a function that
// releases its resources.
func openStore(ctx context.Context, cfg *config.Config) (workflow.Store, func(), error) {
	if cfg.StoreBackend == config.BackendAirtable {
		if cfg.AirtableToken == "" || cfg.AirtableBaseID == "" {
			slog.Warn("airtable credentials missing, every store call will fail")
		}
		return airtable.New(airtable.Config{
			Token:  cfg.AirtableToken,
			BaseID: cfg.AirtableBaseID,
			Table:  cfg.AirtableTable,
			Columns: airtable.DraftColumns{
				EmailDraft:     cfg.AirtableDraftColumn,
				DraftSubmitted: cfg.AirtableSubmittedColumn,
				DraftApproved:  cfg.AirtableApprovedColumn,
			},
		}), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		month := models.MonthLabel(time.Now(), cfg.Location)
		if err := database.Seed(ctx, db, month); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return store.NewThemeStore(db), func() { db.Close() }, nil
}

// openDatabase connects to PostgreSQL and runs pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
