// Package engine moves inventory quantities, assignments and requests
// together inside one transaction, serialising allocations per item.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// Operation names, used for errors, logs and metrics.
const (
	OpCreateAssignment = "create_assignment"
	OpApproveRequest   = "approve_request"
	OpRejectRequest    = "reject_request"
	OpSubmitRequest    = "submit_request"
	OpRequestReturn    = "request_return"
	OpCompleteReturn   = "complete_return"
	OpDeleteItem       = "delete_item"
	OpUpdateItem       = "update_item"
)

// Recorder observes the outcome of every operation.
type Recorder interface {
	Observe(op, result string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, string, time.Duration) {}

// Engine runs allocation operations against a database.
type Engine struct {
	db        *db.DB
	publisher events.Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where committed events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithRecorder sets the operation metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides the time source for allocation and return dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLockTimeout bounds how long a single operation may run, lock waits
// included. Exceeding it fails the operation as transient.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates an Engine.
func New(database *db.DB, opts ...Option) *Engine {
	e := &Engine{
		db:        database,
		publisher: events.NopPublisher{},
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Approval is the result of approving a request.
type Approval struct {
	Request    *model.Request    `json:"request"`
	Assignment *model.Assignment `json:"assignment"`
}

// CreateAssignment allocates one unit of an item to a staff member.
func (e *Engine) CreateAssignment(ctx context.Context, actor model.Identity, itemID, staffID int64) (a *model.Assignment, err error) {
	const op = OpCreateAssignment
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, fail(KindForbidden, op, "")
	}

	var remaining int
	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		id, left, err := e.allocate(ctx, tx, op, itemID, staffID)
		if err != nil {
			return err
		}
		remaining = left
		a, err = store.GetAssignment(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "assignment created", "assignment", a.ID, "item", itemID,
		"staff", staffID, "actor", actor.SubjectID, "remaining", remaining)

	ev := events.New(events.AssignmentCreated, actor.SubjectID, a.AllocationDate).WithQuantity(remaining)
	ev.ItemID, ev.StaffID, ev.AssignmentID = itemID, staffID, a.ID
	e.publish(ctx, ev)
	return a, nil
}

// ApproveRequest approves a pending request by allocating one unit of itemID
// to the requesting staff member.
func (e *Engine) ApproveRequest(ctx context.Context, actor model.Identity, requestID, itemID int64) (res *Approval, err error) {
	const op = OpApproveRequest
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, fail(KindForbidden, op, "")
	}

	var remaining int
	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		req, err := store.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return fail(KindNotFound, op, requestSubject(requestID))
		}
		if req.Status != model.RequestPending {
			return fail(KindAlreadyProcessed, op, requestSubject(requestID))
		}

		id, left, err := e.allocate(ctx, tx, op, itemID, req.StaffID)
		if err != nil {
			return err
		}
		remaining = left

		// A concurrent decision may have landed while we waited for the lock.
		ok, err := store.DecideRequest(ctx, tx, requestID, model.RequestApproved, &id)
		if err != nil {
			return err
		}
		if !ok {
			return fail(KindAlreadyProcessed, op, requestSubject(requestID))
		}

		res = &Approval{}
		if res.Request, err = store.GetRequest(ctx, tx, requestID); err != nil {
			return err
		}
		res.Assignment, err = store.GetAssignment(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "request approved", "request", requestID, "item", itemID,
		"assignment", res.Assignment.ID, "actor", actor.SubjectID, "remaining", remaining)

	ev := events.New(events.RequestApproved, actor.SubjectID, e.now()).WithQuantity(remaining)
	ev.ItemID, ev.StaffID = itemID, res.Request.StaffID
	ev.AssignmentID, ev.RequestID = res.Assignment.ID, requestID
	e.publish(ctx, ev)
	return res, nil
}

// RejectRequest rejects a pending request.
func (e *Engine) RejectRequest(ctx context.Context, actor model.Identity, requestID int64) (req *model.Request, err error) {
	const op = OpRejectRequest
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, fail(KindForbidden, op, "")
	}

	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		ok, err := store.DecideRequest(ctx, tx, requestID, model.RequestRejected, nil)
		if err != nil {
			return err
		}
		if req, err = store.GetRequest(ctx, tx, requestID); err != nil {
			return err
		}
		switch {
		case req == nil:
			return fail(KindNotFound, op, requestSubject(requestID))
		case !ok:
			return fail(KindAlreadyProcessed, op, requestSubject(requestID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "request rejected", "request", requestID, "actor", actor.SubjectID)

	ev := events.New(events.RequestRejected, actor.SubjectID, e.now())
	ev.StaffID, ev.RequestID = req.StaffID, requestID
	e.publish(ctx, ev)
	return req, nil
}

// SubmitRequest files a pending request on behalf of a staff member.
func (e *Engine) SubmitRequest(ctx context.Context, actor model.Identity, itemName, justification string) (req *model.Request, err error) {
	const op = OpSubmitRequest
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsStaff() {
		return nil, fail(KindForbidden, op, "")
	}

	itemName, justification, err = model.NormalizeRequest(itemName, justification)
	if err != nil {
		return nil, invalid(op, err)
	}

	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		req, err = store.CreateRequest(ctx, tx, actor.SubjectID, itemName, justification)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "request submitted", "request", req.ID, "staff", actor.SubjectID)

	ev := events.New(events.RequestSubmitted, actor.SubjectID, req.CreatedAt)
	ev.StaffID, ev.RequestID = actor.SubjectID, req.ID
	e.publish(ctx, ev)
	return req, nil
}

// RequestReturn marks the caller's assignment as awaiting return. Inventory
// is untouched until the return is completed.
func (e *Engine) RequestReturn(ctx context.Context, actor model.Identity, assignmentID int64) (a *model.Assignment, err error) {
	const op = OpRequestReturn
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsStaff() {
		return nil, fail(KindForbidden, op, "")
	}

	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		ok, err := store.MarkReturnRequested(ctx, tx, assignmentID, actor.SubjectID)
		if err != nil {
			return err
		}
		if a, err = store.GetAssignment(ctx, tx, assignmentID); err != nil {
			return err
		}
		if ok {
			return nil
		}

		subject := assignmentSubject(assignmentID)
		switch {
		case a == nil:
			return fail(KindNotFound, op, subject)
		case a.StaffID != actor.SubjectID:
			return fail(KindForbidden, op, subject)
		case a.Status == model.AssignmentReturnRequested:
			return fail(KindAlreadyRequested, op, subject)
		default:
			return fail(KindInvalidState, op, subject)
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "return requested", "assignment", a.ID, "item", a.ItemID,
		"staff", actor.SubjectID)

	ev := events.New(events.ReturnRequested, actor.SubjectID, e.now())
	ev.ItemID, ev.StaffID, ev.AssignmentID = a.ItemID, a.StaffID, a.ID
	e.publish(ctx, ev)
	return a, nil
}

// CompleteReturn records the physical return of an item and puts the unit
// back into stock.
func (e *Engine) CompleteReturn(ctx context.Context, actor model.Identity, assignmentID int64) (a *model.Assignment, err error) {
	const op = OpCompleteReturn
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, fail(KindForbidden, op, "")
	}

	var remaining int
	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		subject := assignmentSubject(assignmentID)

		itemID, ok, err := store.MarkReturned(ctx, tx, assignmentID, e.now())
		if err != nil {
			return err
		}
		if !ok {
			existing, err := store.GetAssignment(ctx, tx, assignmentID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fail(KindNotFound, op, subject)
			}
			return fail(KindInvalidState, op, subject)
		}

		ok, err = store.IncrementItemQuantity(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return fail(KindNotFound, op, itemSubject(itemID))
		}

		item, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		remaining = item.QuantityAvailable

		a, err = store.GetAssignment(ctx, tx, assignmentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "return completed", "assignment", a.ID, "item", a.ItemID,
		"actor", actor.SubjectID, "remaining", remaining)

	ev := events.New(events.ReturnCompleted, actor.SubjectID, *a.ReturnDate).WithQuantity(remaining)
	ev.ItemID, ev.StaffID, ev.AssignmentID = a.ItemID, a.StaffID, a.ID
	e.publish(ctx, ev)
	return a, nil
}

// DeleteItem removes an item together with every assignment that references
// it, and reports how many assignments were removed.
func (e *Engine) DeleteItem(ctx context.Context, actor model.Identity, itemID int64) (removed int64, err error) {
	const op = OpDeleteItem
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return 0, fail(KindForbidden, op, "")
	}

	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		item, err := store.LockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fail(KindNotFound, op, itemSubject(itemID))
		}

		if err := store.DetachRequestsFromItem(ctx, tx, itemID); err != nil {
			return err
		}
		if removed, err = store.DeleteAssignmentsByItem(ctx, tx, itemID); err != nil {
			return err
		}
		ok, err := store.DeleteItemRow(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return fail(KindNotFound, op, itemSubject(itemID))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "item deleted", "item", itemID, "assignments", removed,
		"actor", actor.SubjectID)

	ev := events.New(events.ItemDeleted, actor.SubjectID, e.now())
	ev.ItemID, ev.Removed = itemID, removed
	e.publish(ctx, ev)
	return removed, nil
}

// UpdateItem applies an administrative edit to an item under the same lock
// allocations take, so an edit never overwrites a concurrent decrement.
func (e *Engine) UpdateItem(ctx context.Context, actor model.Identity, itemID int64, in model.ItemInput) (item *model.InventoryItem, err error) {
	const op = OpUpdateItem
	defer e.observe(ctx, op, time.Now(), &err)

	if !actor.IsAdmin() {
		return nil, fail(KindForbidden, op, "")
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(op, err)
	}

	err = e.withTx(ctx, op, func(tx *db.Tx) error {
		locked, err := store.LockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fail(KindNotFound, op, itemSubject(itemID))
		}
		if _, err := store.UpdateItem(ctx, tx, itemID, in); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "item updated", "item", itemID, "actor", actor.SubjectID)

	ev := events.New(events.ItemUpdated, actor.SubjectID, item.UpdatedAt).WithQuantity(item.QuantityAvailable)
	ev.ItemID = itemID
	e.publish(ctx, ev)
	return item, nil
}

// allocate locks the item, checks stock and the recipient, records an
// assignment and takes one unit. It returns the new assignment ID and the
// quantity left.
func (e *Engine) allocate(ctx context.Context, tx *db.Tx, op string, itemID, staffID int64) (int64, int, error) {
	item, err := store.LockItem(ctx, tx, itemID)
	if err != nil {
		return 0, 0, err
	}
	if item == nil {
		return 0, 0, fail(KindNotFound, op, itemSubject(itemID))
	}
	if item.QuantityAvailable <= 0 {
		return 0, 0, fail(KindUnavailable, op, itemSubject(itemID))
	}

	staff, err := store.GetUser(ctx, tx, staffID)
	if err != nil {
		return 0, 0, err
	}
	if staff == nil || staff.DeletedAt != nil || staff.Role != model.RoleStaff {
		return 0, 0, fail(KindNotFound, op, fmt.Sprintf("staff %d", staffID))
	}

	id, err := store.InsertAssignment(ctx, tx, itemID, staffID, e.now())
	if err != nil {
		return 0, 0, err
	}
	ok, err := store.DecrementItemQuantity(ctx, tx, itemID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fail(KindUnavailable, op, itemSubject(itemID))
	}

	return id, item.QuantityAvailable - 1, nil
}

// withTx runs fn in a transaction, committing only if fn succeeds. Errors
// that are not already engine errors come from storage and are transient.
func (e *Engine) withTx(ctx context.Context, op string, fn func(tx *db.Tx) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return transient(op, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		var engineErr *Error
		if errors.As(err, &engineErr) {
			return err
		}
		return transient(op, err)
	}

	if err := tx.Commit(); err != nil {
		return transient(op, fmt.Errorf("committing: %w", err))
	}
	return nil
}

// observe records the outcome of op. ctx is the caller's context, so failure
// logs keep any request-scoped attributes.
func (e *Engine) observe(ctx context.Context, op string, start time.Time, errp *error) {
	err := *errp
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	e.recorder.Observe(op, result, time.Since(start))

	switch {
	case err == nil:
	case IsRetryable(err):
		e.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err, "transient_driver_error", db.IsTransient(err))
	default:
		e.logger.WarnContext(ctx, "operation rejected", "op", op, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "publishing event", "type", ev.Type, "id", ev.ID, "error", err)
	}
}

func itemSubject(id int64) string       { return fmt.Sprintf("item %d", id) }
func requestSubject(id int64) string    { return fmt.Sprintf("request %d", id) }
func assignmentSubject(id int64) string { return fmt.Sprintf("assignment %d", id) }
