package state

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every input rejection
	ErrValidation        = errors.New("validation failed")
	ErrInvalidAllowedIPs = fmt.Errorf("%w: invalid allowed ips", ErrValidation)

	ErrPeerNotFound  = errors.New("peer not found")
	ErrDuplicatePeer = errors.New("peer id already exists")
	ErrInvalidPeerID = errors.New("peer id must be positive")
	ErrKeyGeneration = errors.New("could not create key pair")
	ErrPersistence   = errors.New("could not save server config")
)
