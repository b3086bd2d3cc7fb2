package repository

import "errors"

// ErrInvalidGaze is returned for a gaze ratio outside [0,1].
var ErrInvalidGaze = errors.New("gaze ratio out of range")
