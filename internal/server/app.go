// Package server wires the deaddrop components together and runs the gRPC
// endpoint until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/deaddrop/internal/codename"
	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/identity"
	"github.com/dmitrijs2005/deaddrop/internal/keys"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
	"github.com/dmitrijs2005/deaddrop/internal/server/auth"
	"github.com/dmitrijs2005/deaddrop/internal/server/config"
	"github.com/dmitrijs2005/deaddrop/internal/server/provisioner"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/deaddrop/internal/server/services"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/dmitrijs2005/deaddrop/internal/server/storage"
	"github.com/dmitrijs2005/deaddrop/internal/server/submission"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/deaddrop/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	provisioner *provisioner.Provisioner
	server      *gs.GRPCServer
}

// Seams for tests.
var (
	sqlOpen     = sql.Open
	newS3Client = storage.NewS3Client
	newKeyring  = keys.NewKeyring
)

var entropySource keys.EntropyEstimator = keys.SystemEntropy{}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	words, err := codename.LoadWords(c.WordlistPath)
	if err != nil {
		return nil, err
	}
	if err := codename.Check(words, c.NumWords, c.MaxCodenameLen); err != nil {
		logger.Warn(ctx, "wordlist may produce codenames that are too long", "error", err)
	}

	hasher, err := identity.NewHasher([]byte(c.Pepper), identity.Params{
		Algorithm:    c.HashAlgorithm,
		ScryptN:      c.ScryptN,
		ScryptR:      c.ScryptR,
		ScryptP:      c.ScryptP,
		ArgonTime:    c.ArgonTime,
		ArgonMemory:  c.ArgonMemory,
		ArgonThreads: c.ArgonThreads,
	}, c.MaxCodenameLen)
	if err != nil {
		return nil, err
	}
	if c.Pepper == "" {
		logger.Error(ctx, "no codename pepper configured, logins will fail")
	}

	journalistKey, err := parseJournalistKey(c.JournalistKey)
	if err != nil {
		return nil, err
	}
	if journalistKey == nil {
		logger.Error(ctx, "no journalist key configured, submissions will be refused")
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newStore(ctx, c, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	keyring, err := newKeyring(c.KeysDir, []byte(c.KeyringSecret))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("keyring: %w", err)
	}

	prov := provisioner.New(keyring, entropySource, rm.Sources(db), provisioner.Config{
		Threshold: c.EntropyThreshold,
		Workers:   c.KeygenWorkers,
		QueueSize: c.KeygenQueueSize,
	}, logger)

	secret := c.SecretKey
	if secret == "" {
		if secret, err = common.MakeRandHexString(32); err != nil {
			db.Close()
			return nil, err
		}
		logger.Warn(ctx, "no session secret configured, sessions will not survive a restart")
	}
	tokens, err := auth.NewJWTManager([]byte(secret))
	if err != nil {
		db.Close()
		return nil, err
	}

	policy := session.Policy{Expiration: c.SessionExpiration, Now: time.Now}

	svc := services.NewSourceService(db, rm, services.Deps{
		Codenames:   codename.NewGenerator(words, c.NumWords, c.MaxCodenameLen, logger),
		Hasher:      hasher,
		Store:       store,
		Provisioner: prov,
		Packaging: submission.Options{
			SpoolThreshold: c.SpoolThreshold,
			SpoolDir:       c.SpoolDir,
			JournalistKey:  journalistKey,
		},
		Policy: policy,
	}, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		provisioner: prov,
		server:      gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, tokens, policy),
	}, nil
}

// parseJournalistKey decodes a hex X25519 public key; "" means none.
func parseJournalistKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("journalist key: %w", err)
	}
	if _, err := keys.PublicFromBytes(b); err != nil {
		return nil, fmt.Errorf("journalist key: %w", err)
	}
	return b, nil
}

func newStore(ctx context.Context, c *config.Config, logger logging.Logger) (storage.Store, error) {
	local, err := storage.NewLocal(c.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if c.S3Bucket == "" {
		return local, nil
	}

	client, err := newS3Client(ctx, storage.S3Config{
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		Endpoint:  c.S3BaseEndpoint,
		AccessKey: c.S3RootUser,
		SecretKey: c.S3RootPassword,
		Prefix:    c.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	logger.Info(ctx, "mirroring artifacts to object storage", "bucket", c.S3Bucket)
	return storage.NewS3Mirror(local, client, c.S3Bucket, c.S3Prefix, logger), nil
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains key generation and releases secrets.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	app.provisioner.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), app.config.ShutdownTimeout)
		defer cancel()
		err := app.provisioner.Shutdown(sctx)
		if errors.Is(err, context.DeadlineExceeded) {
			app.logger.Warn(gctx, "key generation did not finish before shutdown", "pending", app.provisioner.Pending())
			return nil
		}
		return err
	})

	err := g.Wait()
	app.close(ctx)
	return err
}

func (app *App) close(ctx context.Context) {
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "couldn't close database", "error", err)
	}
	memguard.Purge()
	app.logger.Info(ctx, "Stopped")
}
