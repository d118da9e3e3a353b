package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/andy/invoicer/internal/billing"
	"github.com/andy/invoicer/internal/config"
	"github.com/andy/invoicer/internal/crypto"
	"github.com/andy/invoicer/internal/db"
	"github.com/andy/invoicer/internal/logging"
	"github.com/andy/invoicer/internal/openai"
	"github.com/andy/invoicer/internal/repository"
	"github.com/andy/invoicer/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// App is the dependency injection container for all application components
type App struct {
	Config     *config.Config
	ConfigPath string
	DB         *db.DB
	Logger     zerolog.Logger

	// Repositories
	ClientRepo  repository.ClientRepository
	EntryRepo   repository.TimeEntryRepository
	InvoiceRepo repository.InvoiceRepository

	// Services
	Generator      *billing.Generator
	LinkageService service.LinkageService
	InvoiceService service.InvoiceService
	EntryService   service.EntryService

	logCloser io.Closer
}

// New creates a new App from the config file at configPath, initializing all
// dependencies:
// 1. Loading config
// 2. Getting encryption key from keyring
// 3. Opening database
// 4. Running migrations
// 5. Creating repositories
// 6. Creating services
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a, err := NewWithConfig(ctx, cfg, crypto.NewKeyring())
	if err != nil {
		return nil, err
	}
	a.ConfigPath = configPath
	return a, nil
}

// NewWithConfig creates an App with a provided config and key store
func NewWithConfig(ctx context.Context, cfg *config.Config, keyring crypto.Keyring) (*App, error) {
	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	password, err := databaseKey(keyring)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	// Open the database with encryption
	database, err := db.Open(cfg.Database.Path, password)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run migrations to ensure schema is up to date
	if err := database.RunMigrations(); err != nil {
		database.Close()
		logCloser.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := Wire(database, cfg, logger)
	a.logCloser = logCloser
	return a, nil
}

// Wire builds repositories and services over an open database
func Wire(database *db.DB, cfg *config.Config, logger zerolog.Logger) *App {
	clientRepo := repository.NewClientRepo(database)
	entryRepo := repository.NewEntryRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)

	generator := billing.NewGenerator(newNarrator(cfg.Narrator, logger))

	linkage := service.NewLinkageService(invoiceRepo, entryRepo, generator, logger)
	invoiceService := service.NewInvoiceService(
		database, invoiceRepo, entryRepo, clientRepo, linkage, generator,
		service.InvoiceConfig{
			DefaultDueDays:   cfg.Invoice.DefaultDueDays,
			SentBackfillHour: cfg.Invoice.SentBackfillHour,
		},
		logger,
	)
	entryService := service.NewEntryService(entryRepo, clientRepo, linkage, logger)

	return &App{
		Config:         cfg,
		DB:             database,
		Logger:         logger,
		ClientRepo:     clientRepo,
		EntryRepo:      entryRepo,
		InvoiceRepo:    invoiceRepo,
		Generator:      generator,
		LinkageService: linkage,
		InvoiceService: invoiceService,
		EntryService:   entryService,
	}
}

// newNarrator picks the description writer. The external service is used only
// when enabled and an API key is present; the template narrator is always the
// fallback.
func newNarrator(cfg config.NarratorConfig, logger zerolog.Logger) billing.Narrator {
	if !cfg.Available() {
		return billing.TemplateNarrator{}
	}

	client := openai.NewClient(openai.Config{
		APIKey:       cfg.APIKey,
		Organization: cfg.Organization,
		Project:      cfg.Project,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		Timeout:      cfg.Timeout,
		MaxTokens:    cfg.MaxTokens,
	})

	return billing.NewAssistedNarrator(client, billing.TemplateNarrator{}, billing.AssistedConfig{
		Attempts:   cfg.Attempts,
		RetryDelay: cfg.RetryDelay,
	}, logger)
}

// Close cleanly shuts down the application
func (a *App) Close() error {
	var err error
	if a.DB != nil {
		err = a.DB.Close()
	}
	if a.logCloser != nil {
		err = errors.Join(err, a.logCloser.Close())
	}
	return err
}

// SaveConfig saves the current configuration to disk
func (a *App) SaveConfig() error {
	path := a.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return a.Config.Save(path)
}

// databaseKey returns the stored key, prompting for a new one on first run
func databaseKey(keyring crypto.Keyring) (string, error) {
	password, err := keyring.GetKey()
	if err == nil {
		return password, nil
	}
	if !errors.Is(err, crypto.ErrKeyNotFound) {
		return "", err
	}

	fmt.Fprintln(os.Stderr, "Setting up database encryption for the first time...")
	password, err = promptForPassword()
	if err != nil {
		return "", fmt.Errorf("failed to set password: %w", err)
	}

	if err := keyring.SetKey(password); err != nil {
		return "", fmt.Errorf("failed to store encryption key: %w", err)
	}
	return password, nil
}

// promptForPassword prompts user for a new database password (first run)
func promptForPassword() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no encryption key stored and stdin is not a terminal; set %s", crypto.KeyEnv)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Your billing data will be encrypted with a password.")
	fmt.Fprintln(os.Stderr, "This password will be stored securely in your system keyring.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, "Enter a password for database encryption: ")

	// Read password securely (no echo)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	fmt.Fprintln(os.Stderr, "✓ Database encryption configured successfully")
	return string(password), nil
}
