package repository

import "errors"

// ErrInvalidReading marks a reading rejected before it reaches storage.
var ErrInvalidReading = errors.New("invalid reading")
