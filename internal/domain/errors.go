package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application. Transport layers map these to status
// codes with errors.Is; services never partially apply an effect before
// returning one of them.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNotFound        = errors.New("resource not found")
	ErrNotAMember      = errors.New("not a member of this conversation")
	ErrNotOwner        = errors.New("not the owner of this message")
	ErrInvalidArgument = errors.New("invalid input")
	ErrConflict        = errors.New("resource already exists")
)

// ErrInvalidEmoji specializes ErrInvalidArgument so callers can still match
// the broader class.
var ErrInvalidEmoji = fmt.Errorf("%w: emoji not in allowed set", ErrInvalidArgument)
