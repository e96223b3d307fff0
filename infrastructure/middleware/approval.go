package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// VarApproved is the ExecutionContext variable set once a call is approved.
const VarApproved = "approved"

// ApprovalRequest describes a call waiting for confirmation.
type ApprovalRequest struct {
	SessionID string
	Tool      string
	Input     json.RawMessage
	RiskLevel string
	Timestamp time.Time
}

// ApprovalResponse is the decision for a request.
type ApprovalResponse struct {
	Approved bool
	Reason   string
}

// Approver decides whether a call may run.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	return f(ctx, req)
}

// AutoApprover approves everything. Used for `--yes`.
func AutoApprover() Approver {
	return ApproverFunc(func(context.Context, ApprovalRequest) (ApprovalResponse, error) {
		return ApprovalResponse{Approved: true, Reason: "auto-approved"}, nil
	})
}

// ApprovalConfig configures the approval middleware.
type ApprovalConfig struct {
	// Approver handles approval requests. Nil rejects every tool that needs one.
	Approver Approver
}

// Approval returns middleware that asks for confirmation before running
// tools that are destructive, high risk or explicitly marked.
func Approval(cfg ApprovalConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			t := execCtx.Tool
			annotations := t.Annotations()

			if !annotations.ShouldRequireApproval() {
				return next(ctx, execCtx)
			}
			if approved, _ := execCtx.Vars[VarApproved].(bool); approved {
				return next(ctx, execCtx)
			}

			if cfg.Approver == nil {
				return tool.Result{}, fmt.Errorf("%w: no approver configured for tool %s",
					tool.ErrApprovalRequired, t.Name())
			}

			resp, err := cfg.Approver.Approve(ctx, ApprovalRequest{
				SessionID: execCtx.SessionID,
				Tool:      t.Name(),
				Input:     execCtx.Input,
				RiskLevel: annotations.RiskLevel.String(),
				Timestamp: time.Now(),
			})
			if err != nil {
				return tool.Result{}, fmt.Errorf("approval error: %w", err)
			}

			logging.Info().
				Add(logging.SessionID(execCtx.SessionID)).
				Add(logging.Tool(t.Name())).
				Add(logging.Approved(resp.Approved)).
				Msg("approval decision")

			if !resp.Approved {
				reason := "approval denied"
				if resp.Reason != "" {
					reason = resp.Reason
				}
				return tool.Result{}, fmt.Errorf("%w: %s", tool.ErrApprovalDenied, reason)
			}

			execCtx.Set(VarApproved, true)
			return next(ctx, execCtx)
		}
	}
}
