package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"credora/config"
	"credora/core"
	"credora/core/events"
	"credora/crypto"
	"credora/native/issuer"
	"credora/native/pool"
	"credora/observability"
	"credora/observability/logging"
	"credora/rpc"
	"credora/storage"
)

const secondsPerDay = 86_400

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup(logging.Options{
		Service:  "credorad",
		Env:      cfg.Env,
		FilePath: cfg.LogPath,
	})

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	owner, err := resolveOwner(cfg.OwnerAddress)
	if err != nil {
		logger.Error("Failed to resolve owner address", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, pool.NewDevYieldSource(), verifierFor(cfg), core.NodeConfig{
		Owner:        owner,
		IssuerParams: issuerParams(cfg),
		ImageBaseURL: cfg.ImageBaseURL,
	})
	if err != nil {
		logger.Error("Failed to construct node", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetEmitter(events.NewLogEmitter(logger))
	node.SetPauses(cfg.Pauses)

	if err := fundDevFaucet(node, cfg, logger); err != nil {
		logger.Error("Failed to fund dev faucet", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewModuleMetrics(nil)
	server := rpc.NewServer(node, metrics, cfg.DevMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("node ready",
		slog.String("owner", owner.String()),
		slog.Bool("devMode", cfg.DevMode),
		slog.String("rpc", cfg.RPCAddress),
	)
	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// fundDevFaucet seeds the configured faucet account in dev mode so the
// lending flow can run locally without a settlement layer. Funding is
// idempotent for a fresh in-memory store but accumulates across restarts on
// a persistent one, which is acceptable for a faucet.
func fundDevFaucet(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.DevMode || strings.TrimSpace(cfg.FaucetAddress) == "" {
		return nil
	}
	faucet, err := crypto.DecodeAddress(cfg.FaucetAddress)
	if err != nil {
		return err
	}
	grant, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 units
	if err := node.FundAccount(faucet, grant); err != nil {
		return err
	}
	logger.Info("dev faucet funded",
		slog.String("address", faucet.String()),
		slog.String("amountWei", grant.String()),
	)
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.DevMode && strings.TrimSpace(cfg.DataDir) == "" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(cfg.DataDir)
}

// resolveOwner falls back to a protocol-derived module address so dev
// deployments work without key management.
func resolveOwner(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.ModuleAddress("owner"), nil
	}
	return crypto.DecodeAddress(trimmed)
}

func issuerParams(cfg *config.Config) issuer.Params {
	return issuer.Params{
		MaxPrincipalWei: cfg.Protocol.MaxPrincipalWei,
		AdvanceRateBps:  cfg.Protocol.AdvanceRateBps,
		InterestRateBps: cfg.Protocol.InterestRateBps,
		TermSeconds:     int64(cfg.Protocol.NoteTermDays) * secondsPerDay,
	}
}

// verifierFor selects the proof verifier. Production deployments plug in a
// real groth16 verifying key; dev mode accepts every well-formed proof.
func verifierFor(cfg *config.Config) issuer.ProofVerifier {
	if cfg.DevMode {
		return issuer.StaticVerifier{Valid: true}
	}
	return issuer.StaticVerifier{Valid: false}
}
