package tool

import "errors"

// Domain errors for the tool system.
var (
	ErrEmptyName        = errors.New("tool name cannot be empty")
	ErrNoHandler        = errors.New("tool has no handler")
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolExists       = errors.New("tool already exists")
	ErrInvalidInput     = errors.New("invalid tool input")
	ErrApprovalRequired = errors.New("approval required for tool execution")
	ErrApprovalDenied   = errors.New("approval denied for tool execution")
	ErrExecutionTimeout = errors.New("tool execution timed out")
)
