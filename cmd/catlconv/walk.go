package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
)

func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := loadRootConfig()
	if err != nil {
		return err
	}
	if cfg.Output == "" {
		return fmt.Errorf("--output is required (the v2 file to walk)")
	}

	r, err := catl2.Open(cfg.Output)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Output, err)
	}
	defer r.Close()

	if !r.SeekToLedger(flagGetLedger) {
		return fmt.Errorf("ledger %d not found", flagGetLedger)
	}

	opts := catl2.WalkOptions{
		Parallel:   cfg.Walk.Parallel,
		Prefetch:   cfg.Walk.Prefetch,
		NumThreads: cfg.Walk.Threads,
	}

	count := 0
	visit := func(rec catl2.LeafRecord) bool {
		count++
		fmt.Printf("%s %s\n", hex.EncodeToString(rec.Key[:]), hex.EncodeToString(rec.Data))
		return true
	}

	if flagWalkState {
		if err := r.WalkStateItems(opts, visit); err != nil {
			return fmt.Errorf("walk state: %w", err)
		}
	}
	if flagWalkTxns {
		if err := r.WalkTxItems(opts, visit); err != nil {
			return fmt.Errorf("walk txns: %w", err)
		}
	}
	convertLog.Info("walk complete", "items", count)
	return nil
}
