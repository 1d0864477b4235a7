package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/corpus"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/imagecheck"
	"github.com/hpungsan/cardbot/internal/logging"
	"github.com/hpungsan/cardbot/internal/mcp"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// EnvHome overrides the state directory (default ~/.cardbot).
const EnvHome = "CARDBOT_HOME"

// appEnv holds process-wide dependencies, built on first use. Tests preset
// the fields they need.
type appEnv struct {
	baseDir string
	cfg     *config.Config
	db      *sql.DB
	checker imagecheck.Checker
	picker  reply.Picker
	offline bool

	corpora map[string]*resolve.Resolver
}

func newEnv() (*appEnv, error) {
	baseDir := os.Getenv(EnvHome)
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".cardbot")
	}
	return &appEnv{baseDir: baseDir}, nil
}

// setup loads .env, the config and the logger. configPath overrides the
// global and project config files. A preset cfg is kept as is.
func (e *appEnv) setup(configPath string) error {
	if e.cfg != nil {
		return nil
	}
	if err := config.LoadEnv(filepath.Join(e.baseDir, ".env")); err != nil {
		return err
	}
	if err := config.LoadEnv(".env"); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cwd, _ := os.Getwd()
		cfg, err = config.LoadWithProject(e.baseDir, cwd)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Setup(cfg.LogLevel, cfg.LogJSON)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		slog.Warn("unknown types in disabled_types", "types", unknown)
	}

	e.cfg = cfg
	return nil
}

// database opens the reply log on first use.
func (e *appEnv) database() (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	database, err := db.Init(e.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, e.cfg)
	e.db = database
	return database, nil
}

// corpusPath is the configured corpus file, or cards.json in the state dir.
func (e *appEnv) corpusPath() string {
	if e.cfg.CorpusPath != "" {
		return e.cfg.CorpusPath
	}
	return filepath.Join(e.baseDir, "cards.json")
}

// resolver loads the corpus and builds a resolver whose self-mention card
// answers to selfName. Resolvers are cached per self name.
func (e *appEnv) resolver(selfName string) (*resolve.Resolver, error) {
	if r, ok := e.corpora[selfName]; ok {
		return r, nil
	}

	c, err := corpus.LoadFile(e.corpusPath(), corpus.MatchPolicy{
		Ceiling:  e.cfg.PartialMatchCeiling,
		Lenient:  e.cfg.LenientPartialMatch,
		SelfName: selfName,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("corpus loaded", "source", c.Source(), "cards", c.Len())

	checker := e.checker
	if checker == nil && !e.offline {
		checker = imagecheck.NewHTTPChecker(
			&http.Client{},
			e.cfg.ImageContentType,
			time.Duration(e.cfg.ImageCheckTimeoutMS)*time.Millisecond,
		)
		e.checker = checker
	}

	r := resolve.New(c, checker, resolve.Options{
		Template: e.cfg.ImageURLTemplate,
		Fallback: e.cfg.FallbackImageURL,
		Workers:  e.cfg.ImageCheckWorkers,
	})
	if e.corpora == nil {
		e.corpora = make(map[string]*resolve.Resolver)
	}
	e.corpora[selfName] = r
	return r, nil
}

// formatter builds the reply formatter from config.
func (e *appEnv) formatter() reply.Formatter {
	return reply.Formatter{
		Footer: reply.Footer{
			Operator:   e.cfg.Operator,
			SourceURL:  e.cfg.SourceURL,
			ContactURL: e.cfg.ContactURL,
		},
		Tips:   e.cfg.Tips,
		Picker: e.picker,
	}
}

// Close releases the database, if it was opened.
func (e *appEnv) Close() {
	if e.db != nil {
		e.db.Close()
	}
}
