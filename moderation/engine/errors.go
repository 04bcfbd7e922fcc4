package engine

import (
	"errors"
)

var (
	// The actor may not act on this target, or lacks the permission key.
	// Terminal; no side effects happened.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// The platform rejected the action (eg, unbanning a user who is not
	// banned). Terminal; no suppression marker consumed, no case created.
	ErrActionExecutionFailed = errors.New("action execution failed")
	// Every contact method was exhausted and the actor declined to proceed
	// without notifying. The real-world action may already have happened.
	ErrNotificationFailed = errors.New("notification failed")
	// The actor declined a confirmation prompt, or it timed out.
	ErrConfirmationDeclined = errors.New("confirmation declined or timed out")
	// Case or reversal storage failed. When this surfaces from an action
	// entry point, the real-world action already took effect.
	ErrPersistence = errors.New("persistence error")
)
