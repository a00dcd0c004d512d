// Package approval implements the human-approval gate for interventions
// the Safety stage marks RequiresApproval: execution
// blocks until a human resolves the request or it times out to its
// configured default effect.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/payops/sentinel/internal/alert"
)

// Request represents a pending approval request for one intervention.
type Request struct {
	ID             string
	CycleID        string
	InterventionID string
	Kind           string
	Target         string
	ActionSummary  map[string]interface{}
	Timeout        time.Duration
	TimeoutEffect  string // "deny" or "allow"
	CreatedAt      time.Time
	result         chan Result
}

// Result is the outcome of an approval request.
type Result struct {
	Approved   bool
	ResolvedBy string
}

// Queue manages pending approval requests in memory, for the lifetime
// of one sentinel process.
type Queue struct {
	mu       sync.RWMutex
	pending  map[string]*Request
	alertMgr *alert.Manager
	logger   *slog.Logger
}

// NewQueue creates a new approval queue and starts its timeout checker.
func NewQueue(alertMgr *alert.Manager, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		pending:  make(map[string]*Request),
		alertMgr: alertMgr,
		logger:   logger.With("component", "approval"),
	}
	go q.checkTimeouts()
	return q
}

// Submit queues an intervention for approval and blocks until resolved
// or timed out.
func (q *Queue) Submit(ctx context.Context, req *Request) (bool, error) {
	req.CreatedAt = time.Now()
	req.result = make(chan Result, 1)

	q.mu.Lock()
	q.pending[req.ID] = req
	q.mu.Unlock()

	if q.alertMgr != nil {
		q.alertMgr.Send(alert.Alert{
			Type:     "approval_required",
			Severity: "warning",
			Title:    fmt.Sprintf("Approval needed: %s on %s", req.Kind, req.Target),
			Message:  fmt.Sprintf("Intervention %s requires human approval. Cycle: %s", req.InterventionID, req.CycleID),
			CycleID:  req.CycleID,
			Issuer:   req.Target,
			Details:  req.ActionSummary,
		})
	}

	q.logger.Info("approval request submitted",
		"approval_id", req.ID,
		"kind", req.Kind,
		"target", req.Target,
		"timeout", req.Timeout,
	)

	select {
	case result := <-req.result:
		return result.Approved, nil
	case <-ctx.Done():
		q.cleanup(req.ID)
		return false, ctx.Err()
	}
}

// Resolve approves or denies a pending request.
func (q *Queue) Resolve(approvalID string, approved bool, resolvedBy string) error {
	q.mu.Lock()
	req, ok := q.pending[approvalID]
	if ok {
		delete(q.pending, approvalID)
	}
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("approval %s not found or already resolved", approvalID)
	}

	req.result <- Result{Approved: approved, ResolvedBy: resolvedBy}

	q.logger.Info("approval resolved",
		"approval_id", approvalID,
		"approved", approved,
		"resolved_by", resolvedBy,
	)

	return nil
}

// ListPending returns all pending approval requests.
func (q *Queue) ListPending() []*Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	requests := make([]*Request, 0, len(q.pending))
	for _, req := range q.pending {
		requests = append(requests, req)
	}
	return requests
}

// checkTimeouts periodically resolves requests past their deadline to
// their configured TimeoutEffect.
func (q *Queue) checkTimeouts() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		q.mu.Lock()
		now := time.Now()
		for id, req := range q.pending {
			deadline := req.CreatedAt.Add(req.Timeout)
			if now.After(deadline) {
				approved := req.TimeoutEffect == "allow"
				delete(q.pending, id)

				req.result <- Result{Approved: approved, ResolvedBy: "timeout"}

				q.logger.Warn("approval timed out",
					"approval_id", id,
					"default_effect", req.TimeoutEffect,
					"approved", approved,
				)
			}
		}
		q.mu.Unlock()
	}
}

func (q *Queue) cleanup(approvalID string) {
	q.mu.Lock()
	delete(q.pending, approvalID)
	q.mu.Unlock()
}
