package modelstore

import "errors"

// Sentinel kinds for artifact loading errors.
var (
	ErrModelMissing    = errors.New("model file missing")
	ErrDecode          = errors.New("model decode failed")
	ErrFeatureMismatch = errors.New("feature contract mismatch")
	ErrUnknownKind     = errors.New("unknown model kind")
)
