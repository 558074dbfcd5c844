package v1stream

import (
	"fmt"

	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

// Apply replays records onto m in order: shamap.NodeTypeRemove deletes
// the key, anything else does an ADD_OR_UPDATE. It stops and returns
// an error on the first structural failure (the SHAMap layer's own
// constraint violations surface as SetResult and are not treated as
// fatal here, matching the propagation policy that only structural
// errors bubble up).
func Apply(m *shamap.SHAMap, records []Record) error {
	for _, rec := range records {
		switch rec.Type {
		case shamap.NodeTypeRemove:
			if _, err := m.RemoveItem(rec.Key); err != nil {
				return fmt.Errorf("v1stream: apply remove %x: %w", rec.Key, err)
			}
		case shamap.NodeTypeTerminal:
			return fmt.Errorf("v1stream: unexpected terminal record for key %x", rec.Key)
		default:
			item := shamap.NewItem(rec.Key, rec.Data)
			if _, err := m.SetItem(item, shamap.ModeAddOrUpdate); err != nil {
				return fmt.Errorf("v1stream: apply add %x: %w", rec.Key, err)
			}
		}
	}
	return nil
}

// ApplyLedger applies both the state delta and the transaction set of
// a tuple onto their respective trees.
func ApplyLedger(stateMap, txMap *shamap.SHAMap, tuple LedgerTuple) error {
	if err := Apply(stateMap, tuple.StateDelta); err != nil {
		return err
	}
	return Apply(txMap, tuple.TransactionSet)
}
