package catl2

import "errors"

var (
	ErrCorruptFile    = errors.New("catl2: corrupt file")
	ErrKeyNotFound    = errors.New("catl2: key not found")
	ErrLedgerNotFound = errors.New("catl2: ledger not found")
	ErrNoCurrentLedger = errors.New("catl2: no current ledger selected")
)
