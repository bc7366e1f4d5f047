package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eigerco/relayergame/pkg/db/pebble"
)

const (
	ErrFailedBatchCommit = "failed to commit batch: %w"
)

// Prefix constants for all store types
const (
	prefixOpenGames byte = iota + 1
	prefixAffirmations
	prefixBestConfirmedAtOpen
	prefixRoundCount
	prefixDeadline
	prefixScheduler
	prefixSamplePoints
	prefixStake
	prefixAccount
	prefixConfirmedHeader
	prefixBestConfirmed
	prefixPendingParcels
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixOpenGames:
		return "openGames"
	case prefixAffirmations:
		return "affirmations"
	case prefixBestConfirmedAtOpen:
		return "bestConfirmedAtOpen"
	case prefixRoundCount:
		return "roundCount"
	case prefixDeadline:
		return "deadline"
	case prefixScheduler:
		return "scheduler"
	case prefixSamplePoints:
		return "samplePoints"
	case prefixStake:
		return "stake"
	case prefixAccount:
		return "account"
	case prefixConfirmedHeader:
		return "confirmedHeader"
	case prefixBestConfirmed:
		return "bestConfirmed"
	case prefixPendingParcels:
		return "pendingParcels"
	default:
		return "unknown"
	}
}

// ReadWriter is the subset of db.KVStore the typed views need. Both a
// db.KVStore and a *Tx satisfy it.
type ReadWriter interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// makeKey creates a key from a prefix and the big-endian parts that follow it.
func makeKey(prefix byte, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 1, n)
	key[0] = prefix
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func be64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func be32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// getRLP decodes the value at key into out. It reports false when the key is
// absent and leaves out untouched.
func getRLP(rw ReadWriter, key []byte, out any) (bool, error) {
	b, err := rw.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", PrefixToString(key[0]), err)
	}
	if err := rlp.DecodeBytes(b, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", PrefixToString(key[0]), err)
	}
	return true, nil
}

func putRLP(rw ReadWriter, key []byte, v any) error {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", PrefixToString(key[0]), err)
	}
	return rw.Put(key, b)
}
