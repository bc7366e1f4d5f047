package ethrelay

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eigerco/relayergame/internal/game"
)

// EncodeParcel wraps an Ethereum header into a game parcel at its block number.
func EncodeParcel(h *types.Header) (game.Parcel, error) {
	if h.Number == nil || !h.Number.IsUint64() {
		return game.Parcel{}, fmt.Errorf("%w: %v", ErrHeaderNumber, h.Number)
	}
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		return game.Parcel{}, fmt.Errorf("marshal header: %w", err)
	}
	return game.Parcel{ID: game.GameID(h.Number.Uint64()), Payload: b}, nil
}

// DecodeParcel is the inverse of EncodeParcel. It rejects parcels whose
// position differs from the header number.
func DecodeParcel(p game.Parcel) (*types.Header, error) {
	h := new(types.Header)
	if err := rlp.DecodeBytes(p.Payload, h); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	if h.Number == nil || h.Number.Cmp(new(big.Int).SetUint64(uint64(p.ID))) != 0 {
		return nil, fmt.Errorf("%w: parcel %d carries header %v", ErrHeaderNumber, p.ID, h.Number)
	}
	return h, nil
}

// NewProof is the proof accepted for h: its Keccak-256 hash.
func NewProof(h *types.Header) game.Proof {
	hash := h.Hash()
	return game.Proof(hash.Bytes())
}

func continuous(prev, next *types.Header) error {
	if prev.Hash() != next.ParentHash {
		return fmt.Errorf("%w: %d -> %d", ErrContinuity, prev.Number, next.Number)
	}
	if new(big.Int).Add(prev.Number, big.NewInt(1)).Cmp(next.Number) != 0 {
		return fmt.Errorf("%w: %d -> %d", ErrContinuity, prev.Number, next.Number)
	}
	return nil
}
