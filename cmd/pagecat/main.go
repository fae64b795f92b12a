// Command pagecat writes the marketing landing page of the application from
// the name and subscription plans held in the content store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/shepherd-chms/pagecat"
	"github.com/shepherd-chms/pagecat/dep"
	"github.com/shepherd-chms/pagecat/internal/config"
	"github.com/shepherd-chms/pagecat/internal/dependency"
	"github.com/shepherd-chms/pagecat/internal/logger"
)

// Exit codes.
const (
	ExitOK = iota
	ExitConfig
	ExitRetrieval
	ExitWrite
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configFile string
	envFiles   []string
	overrides  map[string]interface{}
}

// flagKeys maps the flags to the config keys they override.
var flagKeys = map[string]string{
	"out":         "output.path",
	"source":      "source",
	"catalog":     "file.catalog",
	"force":       "output.force",
	"backup":      "output.backup",
	"dry-run":     "output.dry_run",
	"create-dirs": "output.create_dirs",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pagecat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile = fs.String("config", "", "Path to a config file (yaml, toml or json)")
		envFile    = fs.String("env-file", ".env", "Environment file loaded before the config")
		out        = fs.String("out", "", "Target page path (default app/page.tsx)")
		source     = fs.String("source", "", "Content source: postgres, consul or file")
		catalog    = fs.String("catalog", "", "Catalog file read by the file source")
		force      = fs.Bool("force", false, "Replace a target that pagecat did not generate")
		backup     = fs.Bool("backup", false, "Keep the replaced page as <path>.bak")
		dryRun     = fs.Bool("dry-run", false, "Print the page to stdout instead of writing it")
		createDirs = fs.Bool("create-dirs", false, "Create missing parent directories of the target")
		logLevel   = fs.String("log-level", "", "Log level: debug, info, warn or error")
		logFormat  = fs.String("log-format", "", "Log format: console or json")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	values := map[string]interface{}{
		"out":         *out,
		"source":      *source,
		"catalog":     *catalog,
		"force":       *force,
		"backup":      *backup,
		"dry-run":     *dryRun,
		"create-dirs": *createDirs,
		"log-level":   *logLevel,
		"log-format":  *logFormat,
	}

	// Only flags given on the command line override the config.
	o := &options{
		configFile: *configFile,
		overrides:  make(map[string]interface{}),
	}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			o.overrides[key] = values[f.Name]
		}
	})
	if *envFile != "" {
		o.envFiles = []string{*envFile}
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintln(stderr, err)
		return ExitConfig
	}

	cfg, err := config.Load(config.LoadInput{
		ConfigFile: opts.configFile,
		EnvFiles:   opts.envFiles,
		Overrides:  opts.overrides,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitConfig
	}

	log, err := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitConfig
	}
	defer log.Sync()

	perms, err := cfg.Output.FileMode()
	if err != nil {
		log.WithError(err).Error("invalid output permissions", nil)
		return ExitConfig
	}

	m, err := pagecat.NewMaterializer(pagecat.MaterializerInput{
		Currency:       cfg.Page.Currency,
		Locale:         cfg.Page.Locale,
		Perms:          perms,
		CreateDestDirs: cfg.Output.CreateDirs,
		Force:          cfg.Output.Force,
		Backup:         cfg.Output.Backup,
		DryRun:         cfg.Output.DryRun,
		DryStream:      stdout,
	})
	if err != nil {
		log.WithError(err).Error("invalid page settings", nil)
		return ExitConfig
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	clients := dependency.NewClientSet()
	defer clients.Stop()

	provider, err := newProvider(ctx, cfg, clients)
	if err != nil {
		log.WithError(err).Error("content source unavailable", map[string]interface{}{
			"source": cfg.Source,
		})
		return ExitRetrieval
	}

	gen := pagecat.NewGenerator(pagecat.GeneratorInput{
		Provider:     provider,
		Materializer: m,
		FallbackName: cfg.AppName,
		EventHandler: logger.EventHandler(log),
	})

	_, err = gen.Run(ctx, cfg.Output.Path)
	return exitCode(err)
}

func exitCode(err error) int {
	var retrieval *pagecat.DataRetrievalError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &retrieval):
		return ExitRetrieval
	default:
		return ExitWrite
	}
}

// newProvider creates the clients needed by the configured source and
// returns its provider.
func newProvider(ctx context.Context, cfg *config.Config, clients *dependency.ClientSet) (dep.Provider, error) {
	switch cfg.Source {
	case config.SourceFile:
		return dependency.NewFileProvider(cfg.File.Catalog)

	case config.SourceConsul:
		err := clients.CreateConsulClient(ctx, clientInput(
			cfg.Consul.Address, cfg.Consul.Namespace, cfg.Consul.Token, cfg.Consul.TLS))
		if err != nil {
			return nil, err
		}
		return dependency.NewConsulProvider(dependency.ConsulProviderInput{
			Clients:    clients,
			Prefix:     cfg.Consul.Prefix,
			Filter:     cfg.Consul.Filter,
			Datacenter: cfg.Consul.Datacenter,
			Namespace:  cfg.Consul.Namespace,
			AllowStale: cfg.Consul.AllowStale,
		})

	case config.SourcePostgres:
		password := cfg.Postgres.Password
		if password == "" && cfg.Postgres.PasswordSecret != "" {
			var err error
			if password, err = vaultPassword(ctx, cfg, clients); err != nil {
				return nil, err
			}
		}
		err := clients.CreatePostgresClient(&dependency.CreatePostgresInput{
			URL:             cfg.Postgres.URL,
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        password,
			Database:        cfg.Postgres.Database,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxConnections,
			MaxIdleConns:    cfg.Postgres.MaxIdle,
			ConnMaxLifetime: cfg.Postgres.ConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		return dependency.NewPostgresProvider(dependency.PostgresProviderInput{
			Clients: clients,
			Timeout: cfg.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

func vaultPassword(ctx context.Context, cfg *config.Config, clients *dependency.ClientSet) (string, error) {
	in := clientInput(cfg.Vault.Address, cfg.Vault.Namespace, cfg.Vault.Token, cfg.Vault.TLS)
	in.UnwrapToken = cfg.Vault.UnwrapToken
	if err := clients.CreateVaultClient(in); err != nil {
		return "", err
	}
	q, err := dependency.NewVaultSecretQuery(cfg.Postgres.PasswordSecret)
	if err != nil {
		return "", err
	}
	password, err := q.Fetch(ctx, clients)
	return password, errors.Wrap(err, "postgres password")
}

func clientInput(address, namespace, token string, tls config.TLSConfig) *dependency.CreateClientInput {
	return &dependency.CreateClientInput{
		Address:   address,
		Namespace: namespace,
		Token:     token,
		TLS: dependency.TLSInput{
			Enabled:    tls.Enabled,
			Verify:     !tls.SkipVerify,
			Cert:       tls.Cert,
			Key:        tls.Key,
			CACert:     tls.CACert,
			CAPath:     tls.CAPath,
			ServerName: tls.ServerName,
		},
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}
