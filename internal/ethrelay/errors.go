package ethrelay

import "errors"

var (
	ErrPendingParcelUnknown   = errors.New("pending parcel not found")
	ErrPendingParcelExists    = errors.New("a parcel is already pending at this number")
	ErrContinuity             = errors.New("headers are not continuous")
	ErrHeaderHash             = errors.New("header hash mismatch")
	ErrHeaderNumber           = errors.New("header number does not match parcel position")
	ErrProof                  = errors.New("invalid header proof")
	ErrConfirmedHeaderUnknown = errors.New("confirmed header not found")
	ErrSamplePoint            = errors.New("parcel is not the expected sample point")
	ErrNotAboveConfirmed      = errors.New("header is not above the best confirmed header")
)
