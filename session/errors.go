package session

import "errors"

// Failure classes carried by event.NetworkError.Err.
var (
	ErrConnect = errors.New("connect error")
	ErrSend    = errors.New("send error")
	ErrRead    = errors.New("read error")
	ErrClosed  = errors.New("connection closed before a match was found")
	ErrTimeout = errors.New("match timeout")
)

// Outcome labels, one per way a session can end.
const (
	OutcomeMatch     = "match"
	OutcomeConnect   = "connect"
	OutcomeSend      = "send"
	OutcomeRead      = "read"
	OutcomeClosed    = "closed"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)
