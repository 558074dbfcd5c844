package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sublimator/catalogue-tools-sub001/internal/config"
	"github.com/sublimator/catalogue-tools-sub001/internal/logging"
)

var (
	flagConfigFile string
	flagInput      string
	flagOutput     string
	flagMaxLedgers int
	flagVerify     bool
	flagLogLevel   string

	flagGetKey      string
	flagGetKeyTx    string
	flagGetLedger   uint32

	flagWalkState bool
	flagWalkTxns  bool
	flagParallel  bool
	flagPrefetch  bool
	flagThreads   int
)

var rootCmd = &cobra.Command{
	Use:   "catlconv",
	Short: "Convert and inspect catalogue v1/v2 ledger snapshot files",
	Long: `catlconv converts a v1 catalogue ledger stream into the v2
mmap-friendly file format, and can look up individual state/transaction
keys or walk an entire tree in an existing v2 file.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "configuration file (TOML)")

	rootCmd.Flags().StringVar(&flagInput, "input", "", "v1 catalogue input path (omit to use a synthetic stream)")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "v2 catalogue output/input path")
	rootCmd.Flags().IntVar(&flagMaxLedgers, "max-ledgers", 0, "maximum ledgers to convert (0 = all)")
	rootCmd.Flags().BoolVar(&flagVerify, "verify-and-test", false, "re-open the output file after writing; check the last ledger is readable and the checksum is stable")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: error, warn, info, debug")

	rootCmd.Flags().StringVar(&flagGetKey, "get-key", "", "hex-encoded state key to look up")
	rootCmd.Flags().StringVar(&flagGetKeyTx, "get-key-tx", "", "hex-encoded transaction key to look up")
	rootCmd.Flags().Uint32Var(&flagGetLedger, "get-ledger", 0, "ledger sequence for --get-key/--get-key-tx")

	rootCmd.Flags().BoolVar(&flagWalkState, "walk-state", false, "walk every state-tree leaf in the current ledger")
	rootCmd.Flags().BoolVar(&flagWalkTxns, "walk-txns", false, "walk every transaction-tree leaf in the current ledger")
	rootCmd.Flags().BoolVar(&flagParallel, "parallel", false, "walk with a partitioned worker pool")
	rootCmd.Flags().BoolVar(&flagPrefetch, "prefetch", false, "accepted but has no effect: the walkers do not prefetch")
	rootCmd.Flags().IntVar(&flagThreads, "threads", 1, "worker count for --parallel")
}

func loadRootConfig() (*config.Config, error) {
	// config.Load always runs Validate, which requires Output — a field
	// only the CLI flags below may end up supplying. So only go through
	// Load (and surface its errors, e.g. malformed TOML) when a config
	// file was actually requested; otherwise start from Default and let
	// the flag overrides below fill in what Validate needs.
	var cfg *config.Config
	if flagConfigFile != "" {
		loaded, err := config.Load(flagConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if flagInput != "" {
		cfg.Input = flagInput
	}
	if flagOutput != "" {
		cfg.Output = flagOutput
	}
	if flagMaxLedgers != 0 {
		cfg.MaxLedgers = flagMaxLedgers
	}
	if flagVerify {
		cfg.VerifyAndTest = true
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagParallel {
		cfg.Walk.Parallel = true
	}
	if flagPrefetch {
		cfg.Walk.Prefetch = true
	}
	if flagThreads != 0 {
		cfg.Walk.Threads = flagThreads
	}
	return cfg, nil
}

func applyLogLevel(level string) error {
	switch level {
	case "error":
		logging.SetLevel(slog.LevelError)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "info":
		logging.SetLevel(slog.LevelInfo)
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	default:
		return fmt.Errorf("invalid --log-level %q", level)
	}
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := applyLogLevel(flagLogLevel); err != nil {
		return err
	}

	switch {
	case flagGetKey != "" || flagGetKeyTx != "":
		return runLookup(cmd, args)
	case flagWalkState || flagWalkTxns:
		return runWalk(cmd, args)
	default:
		return runConvert(cmd, args)
	}
}
