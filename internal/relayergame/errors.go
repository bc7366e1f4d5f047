package relayergame

import "errors"

var (
	ErrAlreadyConfirmed     = errors.New("parcel already confirmed")
	ErrRoundMismatch        = errors.New("game already has later rounds")
	ErrDuplicateGame        = errors.New("game already exists")
	ErrTooManyGames         = errors.New("too many open games")
	ErrInsufficientStake    = errors.New("usable balance below required stake")
	ErrGameClosedForRound   = errors.New("game is not open for this round")
	ErrDuplicateAffirmation = errors.New("same parcels already affirmed in this round")
	ErrUnknownAffirmation   = errors.New("affirmation not found")
	ErrNotVerified          = errors.New("extended affirmation is not verified")
	ErrProofCountMismatch   = errors.New("proof count does not match parcel count")
	ErrInvalidParcel        = errors.New("empty parcel set")
)
