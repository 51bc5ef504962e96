package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStagedWritesInvisibleUntilCommit(t *testing.T) {
	state := NewState(NewMemDB())
	staged := NewStaged(state)

	require.NoError(t, staged.KVPut([]byte("record"), kvRecord{Name: "alpha", Value: 1}))

	// The overlay observes its own write.
	var fromOverlay kvRecord
	ok, err := staged.KVGet([]byte("record"), &fromOverlay)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), fromOverlay.Value)

	// The backend does not.
	var fromBackend kvRecord
	ok, err = state.KVGet([]byte("record"), &fromBackend)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, staged.Commit())
	ok, err = state.KVGet([]byte("record"), &fromBackend)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kvRecord{Name: "alpha", Value: 1}, fromBackend)
}

func TestStagedDiscardLeavesBackendUntouched(t *testing.T) {
	state := NewState(NewMemDB())
	require.NoError(t, state.KVPut([]byte("record"), kvRecord{Name: "base", Value: 7}))

	staged := NewStaged(state)
	require.NoError(t, staged.KVPut([]byte("record"), kvRecord{Name: "changed", Value: 8}))
	require.NoError(t, staged.KVAppend([]byte("index"), []byte("entry")))
	staged.Discard()

	var record kvRecord
	ok, err := state.KVGet([]byte("record"), &record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kvRecord{Name: "base", Value: 7}, record)

	var list [][]byte
	require.NoError(t, state.KVGetList([]byte("index"), &list))
	require.Len(t, list, 0)

	// A discarded overlay can be reused; nothing lingers.
	require.NoError(t, staged.Commit())
	ok, err = state.KVGet([]byte("record"), &record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kvRecord{Name: "base", Value: 7}, record)
}

func TestStagedReadsFallThrough(t *testing.T) {
	state := NewState(NewMemDB())
	require.NoError(t, state.KVPut([]byte("record"), kvRecord{Name: "base", Value: 7}))

	staged := NewStaged(state)
	var record kvRecord
	ok, err := staged.KVGet([]byte("record"), &record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), record.Value)

	// Last staged write wins over the backend value.
	require.NoError(t, staged.KVPut([]byte("record"), kvRecord{Name: "base", Value: 8}))
	require.NoError(t, staged.KVPut([]byte("record"), kvRecord{Name: "base", Value: 9}))
	ok, err = staged.KVGet([]byte("record"), &record)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), record.Value)
}

func TestStagedListMergesAppends(t *testing.T) {
	state := NewState(NewMemDB())
	require.NoError(t, state.KVAppend([]byte("index"), []byte("a")))

	staged := NewStaged(state)
	require.NoError(t, staged.KVAppend([]byte("index"), []byte("b")))
	require.NoError(t, staged.KVAppend([]byte("index"), []byte("a")))
	require.NoError(t, staged.KVAppend([]byte("index"), []byte("b")))

	var merged [][]byte
	require.NoError(t, staged.KVGetList([]byte("index"), &merged))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, merged)

	require.NoError(t, staged.Commit())
	var list [][]byte
	require.NoError(t, state.KVGetList([]byte("index"), &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestStagedCommitPreservesEncoding(t *testing.T) {
	state := NewState(NewMemDB())
	staged := NewStaged(state)

	original := kvRecord{Name: "roundtrip", Value: 99}
	require.NoError(t, staged.KVPut([]byte("record"), original))
	require.NoError(t, staged.Commit())

	var decoded kvRecord
	ok, err := state.KVGet([]byte("record"), &decoded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, original, decoded)
}
