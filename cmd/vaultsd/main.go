package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Reecepbcups/juno-vaults/config"
	"github.com/Reecepbcups/juno-vaults/core/events"
	"github.com/Reecepbcups/juno-vaults/core/state"
	"github.com/Reecepbcups/juno-vaults/native/vaults"
	"github.com/Reecepbcups/juno-vaults/observability/logging"
	"github.com/Reecepbcups/juno-vaults/rpc"
	"github.com/Reecepbcups/juno-vaults/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv("VAULTS_ENV"))
	logger := logging.Setup("vaultsd", env, cfg.LogFile)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := vaults.NewStore(state.NewManager(db))
	if err := bootstrapAdmin(cfg, store); err != nil {
		logger.Error("failed to bootstrap admin config", "err", err)
		os.Exit(1)
	}

	engine := vaults.NewEngine()
	engine.SetState(store)
	engine.SetEmitter(events.NewLogEmitter(logger))

	logger.Info("starting exchange daemon",
		"network", cfg.NetworkName,
		"backend", cfg.Backend,
		"rpc", cfg.RPCAddress,
	)

	server := rpc.NewServer(engine, store)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "vaults"))
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "vaults.db"))
	case "memory":
		return storage.NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// bootstrapAdmin writes the configured admin address into the store on first
// start. An admin already present in the store wins over the config file.
func bootstrapAdmin(cfg *config.Config, store *vaults.Store) error {
	admin, ok, err := cfg.Admin()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, exists, getErr := store.ConfigGet(); getErr != nil {
		return getErr
	} else if exists {
		return nil
	}
	var addr [20]byte
	copy(addr[:], admin.Bytes())
	return store.ConfigPut(&vaults.Config{Admin: addr})
}
