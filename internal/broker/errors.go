package broker

import "errors"

var (
	ErrCredentialMissing       = errors.New("remote credential not configured")
	ErrCredentialInvalid       = errors.New("remote credential rejected")
	ErrRemoteUnavailable       = errors.New("remote service unavailable")
	ErrRemoteMalformedResponse = errors.New("remote service returned no usable content")
)
