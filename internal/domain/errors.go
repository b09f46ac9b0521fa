package domain

import "errors"

// Engine failures are classified so reports can render a meaningful
// placeholder instead of a raw API error dump.
var (
	ErrQuotaExhausted  = errors.New("api quota exhausted")
	ErrInvalidAudio    = errors.New("invalid or unsupported audio")
	ErrAudioTooLarge   = errors.New("audio exceeds inline size limit")
	ErrSafetyBlocked   = errors.New("content blocked by safety filter")
	ErrEmptyTranscript = errors.New("no speech recognized")
)
