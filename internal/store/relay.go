package store

import (
	"github.com/eigerco/relayergame/internal/game"
)

// PendingParcel is a resolved parcel waiting out its confirm period.
type PendingParcel struct {
	ConfirmAt game.BlockNumber
	Parcel    game.Parcel
}

// Relay stores the foreign chain view of a chain adapter: confirmed parcels
// by number, the best confirmed number and the pending list.
type Relay struct {
	rw ReadWriter
}

func NewRelay(rw ReadWriter) *Relay {
	return &Relay{rw: rw}
}

func (r *Relay) ConfirmedParcel(id game.GameID) (game.Parcel, bool, error) {
	var p game.Parcel
	ok, err := getRLP(r.rw, gameKey(prefixConfirmedHeader, id), &p)
	return p, ok, err
}

func (r *Relay) PutConfirmedParcel(p game.Parcel) error {
	return putRLP(r.rw, gameKey(prefixConfirmedHeader, p.ID), p)
}

func (r *Relay) BestConfirmed() (game.GameID, error) {
	var id game.GameID
	_, err := getRLP(r.rw, []byte{prefixBestConfirmed}, &id)
	return id, err
}

func (r *Relay) PutBestConfirmed(id game.GameID) error {
	return putRLP(r.rw, []byte{prefixBestConfirmed}, id)
}

// Pending is ordered by insertion.
func (r *Relay) Pending() ([]PendingParcel, error) {
	var pending []PendingParcel
	if _, err := getRLP(r.rw, []byte{prefixPendingParcels}, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *Relay) PutPending(pending []PendingParcel) error {
	if len(pending) == 0 {
		return r.rw.Delete([]byte{prefixPendingParcels})
	}
	return putRLP(r.rw, []byte{prefixPendingParcels}, pending)
}
