// Command openlotd runs the marketplace escrow and offer-trading daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openlot/openlot/config"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/fees"
	"github.com/openlot/openlot/indexer"
	"github.com/openlot/openlot/oracle"
	"github.com/openlot/openlot/rpc"
	"github.com/openlot/openlot/storage"
	"github.com/openlot/openlot/wallet"

	// Import engine modules to trigger their init() self-registration.
	_ "github.com/openlot/openlot/engine/modules/listing"
	_ "github.com/openlot/openlot/engine/modules/offer"
	_ "github.com/openlot/openlot/engine/modules/trade"
)

// genesisMarker is written once seeding has run so a restart never re-seeds.
const genesisMarker = "meta:genesis_root"

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "openlot.key", "path to keystore file (genkey mode)")
	genKey := flag.Bool("genkey", false, "generate a new key pair, save an encrypted keystore, and exit")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Keystore password comes from the environment (not CLI flags — they
	// leak via ps).
	password := os.Getenv("OPENLOT_PASSWORD")

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal("generate key", zap.Error(err))
		}
		if password == "" {
			log.Warn("OPENLOT_PASSWORD not set — keystore will use an empty password")
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal("save key", zap.Error(err))
		}
		fmt.Printf("Generated key. Address: %s\n", w.Address())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath, log)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal("mkdir data dir", zap.Error(err))
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/market")
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	// ---- initialise state ----
	state := storage.NewStateDB(db)

	// ---- genesis (fresh market only) ----
	if _, err := db.Get([]byte(genesisMarker)); err != nil {
		root, err := config.SeedGenesis(cfg, state, 0)
		if err != nil {
			log.Fatal("genesis", zap.Error(err))
		}
		if err := db.Set([]byte(genesisMarker), []byte(root)); err != nil {
			log.Fatal("genesis marker", zap.Error(err))
		}
		log.Info("genesis state seeded", zap.String("root", root))
	}

	// ---- events / indexer ----
	emitter := events.NewEmitter(log)
	idx := indexer.New(db, emitter, log)

	// ---- engine ----
	orc := oracle.NewStateOracle(state)
	resolver := fees.NewResolver(cfg.FeeBps)
	exec := engine.NewExecutor(state, orc, resolver, cfg.Treasury, emitter)

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(exec, state, idx, cfg.MarketID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, log)
	if err := rpcServer.Start(); err != nil {
		log.Fatal("rpc start", zap.Error(err))
	}
	defer rpcServer.Stop()
	log.Info("rpc listening",
		zap.String("addr", rpcAddr),
		zap.String("market_id", cfg.MarketID),
		zap.Uint64("fee_bps", cfg.FeeBps),
		zap.Bool("auth", cfg.RPCAuthToken != ""))

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}

func loadConfig(path string, log *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("config file not found, using defaults", zap.String("path", path))
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
