// Package cli implements the engram CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/engine"
	"github.com/engramdev/engram/internal/evaluate"
	"github.com/engramdev/engram/internal/index"
	"github.com/engramdev/engram/internal/store"
)

var (
	dbPath     string
	configPath string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Tiered memory engine for conversational agents",
	Long: "engram persists dialogue turns as weighted memory records, keeps a vector index\n" +
		"in sync with SQLite, and assembles budgeted prompt context for new queries.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: ~/.engram/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config path")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func dataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram")
}

func getDBPath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	if cfg.DBPath != "" {
		return cfg.DBPath
	}
	return filepath.Join(dataDir(), "memory.db")
}

func newLogger() *zap.Logger {
	if verbose {
		log, _ := zap.NewDevelopment()
		return log
	}
	log, _ := zap.NewProduction()
	return log
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Embedding.Provider {
	case "", "local":
		inner = embedding.NewLocalEmbedder(cfg.Embedding.Dims)
	case "ollama":
		inner = embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	case "openai":
		inner = embedding.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey,
			cfg.Embedding.Model, cfg.Embedding.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
}

// openEngine constructs the full stack: config, logger, embedder with
// cache, vector index (snapshot loaded), store and engine.
func openEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := newLogger()

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(filepath.Dir(getDBPath(cfg)), "index.gob.gz")
	}
	idx := index.NewChromemIndex(indexPath, log)
	if err := idx.Load(); err != nil {
		return nil, nil, err
	}

	s, err := store.NewSQLiteStore(getDBPath(cfg), idx, emb, log)
	if err != nil {
		return nil, nil, err
	}

	return engine.New(s, evaluate.Noop{}, cfg, log), cfg, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
