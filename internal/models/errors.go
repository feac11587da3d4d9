package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a document does not exist
var ErrNotFound = errors.New("not found")

// ValidationError is a rejected input or a violated precondition. It is
// never retried and its message is safe to show to the user.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation errors
var (
	ErrInvalidInput           = &ValidationError{Code: "invalid_input", Message: "invalid input"}
	ErrEmptyCandidate         = &ValidationError{Code: "empty_candidate", Message: "pairing code is required"}
	ErrSelfPairing            = &ValidationError{Code: "self_pairing", Message: "cannot pair with yourself"}
	ErrCandidateNotFound      = &ValidationError{Code: "candidate_not_found", Message: "no user found for this pairing code"}
	ErrCandidateAlreadyPaired = &ValidationError{Code: "candidate_already_paired", Message: "user is already paired with someone else"}
	ErrAlreadyPaired          = &ValidationError{Code: "already_paired", Message: "you are already paired, unpair first"}
	ErrNotPaired              = &ValidationError{Code: "not_paired", Message: "you are not paired"}
	ErrUserNotFound           = &ValidationError{Code: "user_not_found", Message: "user not found"}
	ErrEmptyEmoji             = &ValidationError{Code: "empty_emoji", Message: "emoji is required"}
	ErrChatNotEnabled         = &ValidationError{Code: "chat_not_enabled", Message: "cooldown chat is not enabled"}
	ErrEmptyMessage           = &ValidationError{Code: "empty_message", Message: "message needs text or an emoji"}
	ErrInvalidMessageType     = &ValidationError{Code: "invalid_message_type", Message: "unknown message type"}
	ErrInvalidReplyStatus     = &ValidationError{Code: "invalid_reply_status", Message: "unknown reply status"}
	ErrMessageNotFound        = &ValidationError{Code: "message_not_found", Message: "message not found"}
	ErrNotRepliable           = &ValidationError{Code: "not_repliable", Message: "message cannot be replied to"}
	ErrAlreadyReplied         = &ValidationError{Code: "already_replied", Message: "message has already been replied to"}
)

// StorageError is a failure of the underlying store: transport, permission
// or availability. The cause is kept for diagnostics.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for op
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is, or wraps, a StorageError
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
