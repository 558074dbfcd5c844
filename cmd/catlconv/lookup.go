package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sublimator/catalogue-tools-sub001/internal/catl2"
)

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, err := loadRootConfig()
	if err != nil {
		return err
	}
	if cfg.Output == "" {
		return fmt.Errorf("--output is required (the v2 file to read)")
	}

	r, err := catl2.Open(cfg.Output)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Output, err)
	}
	defer r.Close()

	if !r.SeekToLedger(flagGetLedger) {
		return fmt.Errorf("ledger %d not found", flagGetLedger)
	}

	if flagGetKey != "" {
		return doLookup(r, flagGetKey, r.LookupKeyInState)
	}
	return doLookup(r, flagGetKeyTx, r.LookupKeyInTx)
}

func doLookup(r *catl2.Reader, keyHex string, lookup func([32]byte) ([]byte, error)) error {
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("invalid --get-key hex %q: %w", keyHex, err)
	}
	if len(keyBytes) != 32 {
		return fmt.Errorf("key must be 32 bytes, got %d", len(keyBytes))
	}
	var key [32]byte
	copy(key[:], keyBytes)

	data, err := lookup(key)
	if errors.Is(err, catl2.ErrKeyNotFound) {
		fmt.Println("not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", keyHex, err)
	}
	fmt.Println(hex.EncodeToString(data))
	return nil
}
