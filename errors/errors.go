package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrInsertRejected   = fmt.Errorf("message insert rejected")
	ErrFeedDisconnected = fmt.Errorf("change feed disconnected")
	ErrEmptyInput       = fmt.Errorf("message body is empty")
	ErrSessionClosed    = fmt.Errorf("chat session is closed")
	ErrInvalidRecord    = fmt.Errorf("invalid message record")
	ErrUnknownBackend   = fmt.Errorf("unknown store backend")
	ErrEmptySearchTerms = fmt.Errorf("no search terms given")
)
