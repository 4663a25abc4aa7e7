package board

import "github.com/pkg/errors"

var (
	ErrResourceNotFound = errors.New("board layout not found")
	ErrMalformedLayout  = errors.New("malformed board layout")
	ErrRaceEnded        = errors.New("race ended")
)
