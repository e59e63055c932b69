package utils

import "errors"

// These errors classify record store and peer failures. Only
// ErrUniquenessConflict is ever recovered, by the optimistic path.
var (
	ErrUniquenessConflict = errors.New("record uniqueness conflict")
	ErrLockAcquisition    = errors.New("lock acquisition failure")
	ErrRendezvousIO       = errors.New("rendezvous io failure")
	ErrPeerLost           = errors.New("peer process lost")
	ErrInvariant          = errors.New("logic invariant violated")
)
