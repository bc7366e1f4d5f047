package relayergame

// Currency is the lockable balance primitive stakes are held in.
type Currency interface {
	// UsableBalance is free balance not covered by any lock.
	UsableBalance(who AccountID) Balance
	SetLock(id LockID, who AccountID, amount Balance)
	RemoveLock(id LockID, who AccountID)
	// Slash burns up to amount from who and returns what was actually taken.
	Slash(who AccountID, amount Balance) Balance
	DepositCreating(who AccountID, amount Balance)
}

// ChainAdapter knows the foreign chain: how parcels are proven, how far a
// disputed position is from the confirmed frontier and how to commit what
// the game resolved.
type ChainAdapter interface {
	BestConfirmed() GameID
	// VerifyProof checks proof for parcel p at position id. confirmed is the
	// frontier snapshot for round-0 parcels and nil for later rounds.
	VerifyProof(id GameID, p Parcel, proof Proof, confirmed *GameID) error
	// Distance is the number of rounds needed to fully expand id down to confirmed.
	Distance(id, confirmed GameID) uint32
	VerifyFullChain(confirmedAtOpen GameID, chain []Parcel) error
	PreverifySamplePoints(extended AffirmationID, extendedParcels, points []Parcel) error
	NextSamplePoints(id GameID, samplePoints [][]GameID) []GameID
	OnNewRound(id GameID, samplePoints []GameID)
	OnResolved(ids []GameID)
	OnGameClosed(id GameID)
	CommitResolved(parcels []Parcel) error
}

// Policy prices stakes and times rounds.
type Policy interface {
	MaxOpenGames() uint32
	StakeFor(round, affirmationsCount uint32) Balance
	AffirmWindow(round uint32) BlockNumber
	ProofGrace(round uint32) BlockNumber
}
