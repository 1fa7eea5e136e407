package goShield

import "context"

// StartScheduler starts the background cleanup and sync jobs. Idempotent.
//
// StartScheduler does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StartScheduler() {
	if e == nil || e.scheduler == nil {
		return
	}
	e.scheduler.Start()
}

// StopScheduler stops the background jobs. Idempotent; in-flight runs finish.
//
// StopScheduler does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StopScheduler() {
	if e == nil || e.scheduler == nil {
		return
	}
	e.scheduler.Stop()
}

// SchedulerStatus describes the schedulerstatus operation and its observable behavior.
//
// SchedulerStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SchedulerStatus() SchedulerStatus {
	if e == nil || e.scheduler == nil {
		return SchedulerStatus{}
	}
	return e.scheduler.Status()
}

// ManualCleanup runs one cleanup sweep immediately.
//
// ManualCleanup may return an error when input validation, dependency calls, or security checks fail.
// ManualCleanup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ManualCleanup(ctx context.Context) CleanupResult {
	if e == nil || e.scheduler == nil {
		return CleanupResult{}
	}
	result := e.scheduler.ManualCleanup(ctx)
	e.emitAudit(ctx, auditEventCleanupRun, result.Success, "", "", result.Err, nil)
	return result
}

// ManualSync runs one ban reconciliation pass immediately.
//
// ManualSync may return an error when input validation, dependency calls, or security checks fail.
// ManualSync does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ManualSync(ctx context.Context) SyncResult {
	if e == nil || e.scheduler == nil {
		return SyncResult{}
	}
	result := e.scheduler.ManualSync(ctx)
	e.emitAudit(ctx, auditEventSyncRun, result.Success, "", "", result.Err, nil)
	return result
}
