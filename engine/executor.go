// Package engine executes signed market operations atomically against the
// state: signature and nonce verification, snapshot, handler dispatch,
// rollback on failure, commit on success.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/fees"
	"github.com/openlot/openlot/oracle"
)

// Context is passed to every Handler and provides access to the market
// state, the ownership oracle, the fee resolver, the triggering operation,
// and the event emitter. Now is the execution time in unix seconds; expiry
// checks use it so tests can pin the clock.
type Context struct {
	State    core.State
	Oracle   oracle.Ownership
	Fees     *fees.Resolver
	Treasury string // platform fee recipient address
	Op       *core.Operation
	Now      int64
	Emitter  *events.Emitter
}

// Executor applies operations to the state using the global Handler
// registry. It serializes all operations internally: callers observe either
// the full pre-state or the full post-state of each operation, never an
// intermediate.
type Executor struct {
	mu       sync.Mutex
	state    core.State
	oracle   oracle.Ownership
	fees     *fees.Resolver
	treasury string
	emitter  *events.Emitter
	now      func() int64
}

// NewExecutor creates an Executor. emitter may be nil (no events delivered).
func NewExecutor(state core.State, orc oracle.Ownership, resolver *fees.Resolver, treasury string, emitter *events.Emitter) *Executor {
	return &Executor{
		state:    state,
		oracle:   orc,
		fees:     resolver,
		treasury: treasury,
		emitter:  emitter,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the executor's time source. Test hook.
func (e *Executor) SetClock(now func() int64) {
	e.now = now
}

// StateRoot returns the deterministic digest of the current market state.
func (e *Executor) StateRoot() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ComputeRoot()
}

// Execute verifies and applies a single operation with snapshot/rollback
// and per-operation commit. On any error the state is byte-for-byte what it
// was before the call.
func (e *Executor) Execute(op *core.Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := op.Verify(); err != nil {
		opsExecuted.WithLabelValues(string(op.Type), "rejected").Inc()
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := e.applyOp(op); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after op failure: %w (revert: %v)", err, revertErr)
		}
		opsExecuted.WithLabelValues(string(op.Type), outcomeLabel(err)).Inc()
		return err
	}

	if err := e.state.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	opsExecuted.WithLabelValues(string(op.Type), "ok").Inc()
	return nil
}

// applyOp checks the nonce, increments it, then dispatches to the handler.
func (e *Executor) applyOp(op *core.Operation) error {
	acc, err := e.state.GetAccount(op.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != op.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, op.Nonce)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", op.From)
	}
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	ctx := &Context{
		State:    e.state,
		Oracle:   e.oracle,
		Fees:     e.fees,
		Treasury: e.treasury,
		Op:       op,
		Now:      e.now(),
		Emitter:  e.emitter,
	}
	return globalRegistry.Execute(op.Type, ctx, op.Payload)
}

// outcomeLabel maps a handler error to a bounded metric label.
func outcomeLabel(err error) string {
	if kind := core.ErrorKind(err); kind != "" {
		return kind
	}
	return "error"
}
