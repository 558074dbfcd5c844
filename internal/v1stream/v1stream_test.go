package v1stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublimator/catalogue-tools-sub001/internal/ledger"
	"github.com/sublimator/catalogue-tools-sub001/internal/shamap"
)

func zeroKey(last byte) shamap.Key {
	var k shamap.Key
	k[31] = last
	return k
}

func TestMemoryStreamReplaysInOrder(t *testing.T) {
	b := NewBuilder()
	b.AddLedger(ledger.HeaderV1{Sequence: 1}, nil, nil)
	b.AddLedger(ledger.HeaderV1{Sequence: 2}, nil, nil)
	s := b.Build()

	first, err := s.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Header.Sequence)

	second, err := s.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.Header.Sequence)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrNoMoreLedgers)
}

func TestDrainCollectsEverything(t *testing.T) {
	b := NewBuilder()
	for seq := uint32(1); seq <= 3; seq++ {
		b.AddLedger(ledger.HeaderV1{Sequence: seq}, nil, nil)
	}
	tuples, err := Drain(b.Build())
	require.NoError(t, err)
	require.Len(t, tuples, 3)
	assert.EqualValues(t, 3, tuples[2].Header.Sequence)
}

func TestApplyAddAndRemove(t *testing.T) {
	m := shamap.New(shamap.NodeTypeAccountState, shamap.Options{})

	key := zeroKey(1)
	records := []Record{
		{Type: shamap.NodeTypeAccountState, Key: key, Data: []byte("hello")},
	}
	require.NoError(t, Apply(m, records))

	item, err := m.GetItem(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), item.Data)

	require.NoError(t, Apply(m, []Record{{Type: shamap.NodeTypeRemove, Key: key}}))
	_, err = m.GetItem(key)
	assert.Error(t, err)
}

func TestApplyLedgerAppliesBothTrees(t *testing.T) {
	stateMap := shamap.New(shamap.NodeTypeAccountState, shamap.Options{})
	txMap := shamap.New(shamap.NodeTypeTxWithMeta, shamap.Options{})

	tuple := LedgerTuple{
		Header:         ledger.HeaderV1{Sequence: 1},
		StateDelta:     []Record{{Type: shamap.NodeTypeAccountState, Key: zeroKey(1), Data: []byte("state")}},
		TransactionSet: []Record{{Type: shamap.NodeTypeTxWithMeta, Key: zeroKey(2), Data: []byte("tx")}},
	}
	require.NoError(t, ApplyLedger(stateMap, txMap, tuple))

	stateItem, err := stateMap.GetItem(zeroKey(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), stateItem.Data)

	txItem, err := txMap.GetItem(zeroKey(2))
	require.NoError(t, err)
	assert.Equal(t, []byte("tx"), txItem.Data)
}

func TestRecordTypeReusesSHAMapNodeType(t *testing.T) {
	assert.Equal(t, "remove", shamap.NodeTypeRemove.String())
	assert.Equal(t, "terminal", shamap.NodeTypeTerminal.String())
}
