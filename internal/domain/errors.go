package domain

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyQuery           = errors.New("empty query")
	ErrMissingAPIKey        = errors.New("required api key missing")
	ErrUnknownProvider      = errors.New("unknown api key provider")
	ErrBusy                 = errors.New("another query is in progress")
	ErrSyncing              = errors.New("conversation sync in progress")
	ErrNotInitialized       = errors.New("conversations not loaded yet")
	ErrRemoteUnavailable    = errors.New("remote store not configured")
	ErrInvalidToken         = errors.New("invalid session token")
)
