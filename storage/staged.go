package storage

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV is the narrow key-value contract shared by State, Staged, and the vault
// engines. Splitting it from Database keeps codec concerns out of callers.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Staged is a write overlay on top of a KV backend. Reads observe staged
// writes; nothing reaches the backend until Commit. Discarding the overlay
// after a failure therefore leaves the backend untouched, which is how the
// vault guarantees no partial state survives a failed redemption.
type Staged struct {
	inner       KV
	writes      map[string][]byte
	writeOrder  []string
	appends     map[string][][]byte
	appendOrder []string
}

// NewStaged constructs an empty overlay over the provided backend.
func NewStaged(inner KV) *Staged {
	return &Staged{
		inner:   inner,
		writes:  make(map[string][]byte),
		appends: make(map[string][][]byte),
	}
}

// KVPut buffers the encoded value without touching the backend.
func (s *Staged) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	k := string(key)
	if _, ok := s.writes[k]; !ok {
		s.writeOrder = append(s.writeOrder, k)
	}
	s.writes[k] = encoded
	return nil
}

// KVGet serves staged writes first and falls through to the backend.
func (s *Staged) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	if encoded, ok := s.writes[string(key)]; ok {
		if out == nil {
			return true, nil
		}
		if err := rlp.DecodeBytes(encoded, out); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.inner.KVGet(key, out)
}

// KVAppend buffers an index entry. Duplicates already staged for the same key
// are dropped, matching the backend's dedupe behaviour.
func (s *Staged) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	k := string(key)
	for _, existing := range s.appends[k] {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	if _, ok := s.appends[k]; !ok {
		s.appendOrder = append(s.appendOrder, k)
	}
	s.appends[k] = append(s.appends[k], append([]byte(nil), value...))
	return nil
}

// KVGetList merges the backend list with staged appends. The overlay only
// supports byte-slice lists, which is the sole list shape the vault stores.
func (s *Staged) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	dest, ok := out.(*[][]byte)
	if !ok {
		return fmt.Errorf("kv: staged lists must decode into *[][]byte")
	}
	var list [][]byte
	if err := s.inner.KVGetList(key, &list); err != nil {
		return err
	}
	for _, staged := range s.appends[string(key)] {
		duplicate := false
		for _, existing := range list {
			if bytes.Equal(existing, staged) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			list = append(list, append([]byte(nil), staged...))
		}
	}
	*dest = list
	return nil
}

// Commit flushes buffered writes to the backend in the order they were
// staged. A mid-flight error leaves the overlay intact so the caller can
// surface the failure; the vault treats any commit error as fatal.
func (s *Staged) Commit() error {
	for _, k := range s.writeOrder {
		var decoded rlp.RawValue = s.writes[k]
		if err := s.inner.KVPut([]byte(k), decoded); err != nil {
			return err
		}
	}
	for _, k := range s.appendOrder {
		for _, value := range s.appends[k] {
			if err := s.inner.KVAppend([]byte(k), value); err != nil {
				return err
			}
		}
	}
	s.reset()
	return nil
}

// Discard drops every buffered write.
func (s *Staged) Discard() {
	s.reset()
}

func (s *Staged) reset() {
	s.writes = make(map[string][]byte)
	s.writeOrder = s.writeOrder[:0]
	s.appends = make(map[string][][]byte)
	s.appendOrder = s.appendOrder[:0]
}
