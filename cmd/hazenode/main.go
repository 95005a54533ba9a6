// Command hazenode is the node process entrypoint: it wires config,
// crypto, the blob store, the state manager, the mempool, the DAG, the
// wave finalizer, the committee manager and the consensus engine
// together and runs the block-production ticker. It deliberately does
// not start an HTTP or websocket server; that surface is a separate
// collaborator out of scope here, mirroring the teacher's cmd/synnergy
// split between the node binary and its walletserver.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hazechain/haze/internal/blobstore"
	"github.com/hazechain/haze/internal/blockstore"
	"github.com/hazechain/haze/internal/committee"
	"github.com/hazechain/haze/internal/consensus"
	"github.com/hazechain/haze/internal/crypto"
	"github.com/hazechain/haze/internal/dag"
	"github.com/hazechain/haze/internal/events"
	"github.com/hazechain/haze/internal/mempool"
	"github.com/hazechain/haze/internal/state"
	"github.com/hazechain/haze/internal/tokenomics"
	"github.com/hazechain/haze/internal/vm"
	"github.com/hazechain/haze/internal/wave"
	"github.com/hazechain/haze/pkg/config"
	"github.com/hazechain/haze/pkg/utils"
)

func main() {
	root := &cobra.Command{Use: "hazenode"}
	root.AddCommand(startCmd())
	root.AddCommand(keygenCmd())
	root.AddCommand(genesisCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var configPath, envFile, keyHex string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start block production and ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(configPath, envFile, keyHex)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", utils.EnvOrDefault("HAZE_CONFIG", "node.yaml"), "path to the node's YAML config")
	cmd.Flags().StringVar(&envFile, "env", utils.EnvOrDefault("HAZE_ENV_FILE", ".env"), "path to an optional .env override file")
	cmd.Flags().StringVar(&keyHex, "key", utils.EnvOrDefault("HAZE_VALIDATOR_KEY", ""), "hex-encoded ed25519 secret key for this validator (required)")
	return cmd
}

func runStart(configPath, envFile, keyHex string) error {
	logger := logrus.New()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		logger.WithError(err).Warn("falling back to defaults")
		cfg = config.Default()
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if keyHex == "" {
		return fmt.Errorf("hazenode start: --key is required")
	}
	secretBytes, err := hex.DecodeString(keyHex)
	if err != nil || len(secretBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("hazenode start: --key must be a %d-byte hex ed25519 secret", ed25519.PrivateKeySize)
	}
	validatorAddr := crypto.DeriveAddress(ed25519.PrivateKey(secretBytes).Public().(ed25519.PublicKey))

	blobs, err := blobstore.New(blobstore.Config{
		Dir:       cfg.Storage.BlobStoragePath,
		MaxSize:   cfg.Storage.MaxBlobSize,
		ChunkSize: cfg.Storage.BlobChunkSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("hazenode start: blob store: %w", err)
	}

	blocks, err := blockstore.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("hazenode start: block store: %w", err)
	}
	defer blocks.Close()

	tk := tokenomics.NewInMemory()
	machine := vm.NewWasmerVM()
	sink := events.NewSink()

	st := state.New(state.Deps{
		Blobs:      blobs,
		Blocks:     blocks,
		Tokenomics: tk,
		VM:         machine,
		Events:     sink,
		Logger:     logger,
	})
	pool := mempool.New(st)
	graph := dag.New()
	waveMgr := wave.New(time.Duration(cfg.Consensus.GoldenWaveThresholdMS) * time.Millisecond)
	committeeMgr := committee.New(committee.DefaultSize, time.Duration(cfg.Consensus.CommitteeRotationIntervalSeconds)*time.Second)

	engine := consensus.New(consensus.Config{
		MaxTxPerBlock: cfg.Consensus.MaxTransactionsPerBlock,
	}, consensus.Deps{
		Mempool:    pool,
		DAG:        graph,
		Wave:       waveMgr,
		Committee:  committeeMgr,
		State:      st,
		Tokenomics: tk,
		Logger:     logger,
	})

	logger.WithField("validator", validatorAddr.String()).Info("hazenode starting block production")
	go runMetricsTask(logger, pool, graph)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for now := range ticker.C {
		block, err := engine.CreateBlock(validatorAddr, now)
		if err != nil {
			logger.WithError(err).Error("create block failed")
			continue
		}
		if err := engine.ProcessBlock(block, now); err != nil {
			logger.WithError(err).Error("process own block failed")
			continue
		}
		logger.WithFields(logrus.Fields{
			"height": block.Header.Height,
			"hash":   block.Header.Hash.String(),
			"txs":    len(block.Transactions),
		}).Info("produced block")
	}
	return nil
}

// runMetricsTask periodically logs pool/DAG size. It stands in for the
// out-of-scope metrics exporter (§1): a real deployment would register
// these as Prometheus gauges instead of log lines.
func runMetricsTask(logger *logrus.Logger, pool *mempool.Pool, graph *dag.DAG) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		logger.WithFields(logrus.Fields{
			"mempool_size": pool.Size(),
			"dag_size":     graph.Len(),
		}).Debug("node metrics")
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "generate a new validator keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := crypto.GenerateKeypair()
			if err != nil {
				return err
			}
			fmt.Printf("address: %s\n", kp.Address.String())
			fmt.Printf("secret:  %s\n", hex.EncodeToString(kp.Secret))
			return nil
		},
	}
}

// genesisFile is what `hazenode genesis` writes: a default config plus a
// starting balance allocation, keyed by hex address.
type genesisFile struct {
	Config   *config.Config    `yaml:"config"`
	Accounts map[string]uint64 `yaml:"accounts"`
}

func genesisCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "write a default node.yaml and empty genesis allocation file",
		RunE: func(cmd *cobra.Command, args []string) error {
			gf := genesisFile{Config: config.Default(), Accounts: map[string]uint64{}}
			b, err := yaml.Marshal(gf)
			if err != nil {
				return fmt.Errorf("hazenode genesis: marshal: %w", err)
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("hazenode genesis: write %s: %w", out, err)
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "node.yaml", "output path for the generated genesis/config file")
	return cmd
}
