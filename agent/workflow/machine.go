// Package workflow enforces the travel request approval chain. Every
// mutation of a TRF after creation goes through the store's
// compare-and-set transition so that concurrent writers cannot both
// advance the same request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

const draftPrefix = "DRAFT-"

// Machine drives TRF transitions against a TravelStore.
type Machine struct {
	store    storex.TravelStore
	now      func() time.Time
	notifier Notifier
}

func New(store storex.TravelStore) *Machine {
	return &Machine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// wrapConflict translates store errors into the shared taxonomy.
func wrapConflict(err error) error {
	switch {
	case errors.Is(err, storex.ErrTRFNotFound):
		return fmt.Errorf("%w: %v", contractx.ErrNotFound, err)
	case errors.Is(err, storex.ErrStatusConflict):
		return fmt.Errorf("%w: %v", contractx.ErrStateConflict, err)
	default:
		return err
	}
}

// pendingFor maps each approver role to the status it acts on.
var pendingFor = map[contractx.Role]storex.Status{
	contractx.RoleIRM:        storex.StatusPendingIRM,
	contractx.RoleSRM:        storex.StatusPendingSRM,
	contractx.RoleBUH:        storex.StatusPendingBUH,
	contractx.RoleSSUH:       storex.StatusPendingSSUH,
	contractx.RoleBGH:        storex.StatusPendingBGH,
	contractx.RoleSSGH:       storex.StatusPendingSSGH,
	contractx.RoleCFO:        storex.StatusPendingCFO,
	contractx.RoleTravelDesk: storex.StatusPendingTravelDesk,
}

// nextAfter maps each approver role to the status its approval produces.
var nextAfter = map[contractx.Role]storex.Status{
	contractx.RoleIRM:        storex.StatusPendingSRM,
	contractx.RoleSRM:        storex.StatusPendingBUH,
	contractx.RoleBUH:        storex.StatusPendingSSUH,
	contractx.RoleSSUH:       storex.StatusPendingBGH,
	contractx.RoleBGH:        storex.StatusPendingSSGH,
	contractx.RoleSSGH:       storex.StatusPendingCFO,
	contractx.RoleCFO:        storex.StatusPendingTravelDesk,
	contractx.RoleTravelDesk: storex.StatusCompleted,
}

// ExpectedStatus returns the pending status an approver role acts on.
func ExpectedStatus(role contractx.Role) (storex.Status, error) {
	status, ok := pendingFor[role]
	if !ok {
		return "", fmt.Errorf("%w: %s is not an approver role", contractx.ErrValidation, role)
	}
	return status, nil
}

// ApproverFor returns the role expected to act on a pending status.
func ApproverFor(status storex.Status) (contractx.Role, bool) {
	for role, pending := range pendingFor {
		if pending == status {
			return role, true
		}
	}
	if status == storex.StatusProcessing {
		return contractx.RoleTravelDesk, true
	}
	return "", false
}

// DraftNumber builds a draft-namespace TRF number.
func DraftNumber(now time.Time, seq int) string {
	return fmt.Sprintf("%sTRF%d%05d", draftPrefix, now.Year(), seq)
}

// SubmittedNumber moves a draft number into the submitted namespace.
func SubmittedNumber(draft string) string {
	return strings.TrimPrefix(draft, draftPrefix)
}

// IsDraftNumber reports whether a TRF number is in the draft namespace.
func IsDraftNumber(number string) bool {
	return strings.HasPrefix(number, draftPrefix)
}

func terminalErr(trf *storex.TRF) error {
	return fmt.Errorf("%w: %s is in terminal state %s", contractx.ErrStateConflict, trf.TRFNumber, trf.Status)
}

// Submit moves a draft into the approval chain. The draft number is
// reassigned to the submitted namespace as part of the same transition.
func (m *Machine) Submit(ctx context.Context, trfNumber string) (*storex.TRF, error) {
	trf, err := m.store.Transition(ctx, trfNumber, storex.StatusDraft, func(trf *storex.TRF) error {
		trf.TRFNumber = SubmittedNumber(trf.TRFNumber)
		trf.Status = storex.StatusPendingIRM
		return nil
	})
	if err != nil {
		return nil, wrapConflict(err)
	}
	m.notify(ctx, trf, string(contractx.RoleEmployee))
	return trf, nil
}

// Approve advances the request one stage. The acting role must be the
// approver assigned to the request's current status; the stage
// timestamp and comment are written exactly once.
func (m *Machine) Approve(ctx context.Context, trfNumber string, role contractx.Role, comments string) (*storex.TRF, error) {
	expected, err := ExpectedStatus(role)
	if err != nil {
		return nil, err
	}
	next := nextAfter[role]

	trf, err := m.store.Transition(ctx, trfNumber, expected, func(trf *storex.TRF) error {
		now := m.now()
		if err := setStageApproval(trf, role, now, comments); err != nil {
			return err
		}
		trf.Status = next
		if role == contractx.RoleTravelDesk {
			trf.FinalApprovedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, wrapConflict(err)
	}
	m.notify(ctx, trf, string(role))
	return trf, nil
}

// Reject terminates the request from any pending status, provided the
// acting role is the approver the request is currently waiting on. All
// later-stage fields stay unset permanently.
func (m *Machine) Reject(ctx context.Context, trfNumber string, role contractx.Role, reason string) (*storex.TRF, error) {
	current, err := m.store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, wrapConflict(err)
	}
	if current.Status.IsTerminal() {
		return nil, terminalErr(current)
	}
	expected, ok := ApproverFor(current.Status)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be rejected from status %s", contractx.ErrStateConflict, trfNumber, current.Status)
	}
	if expected != role {
		return nil, fmt.Errorf("%w: status %s is waiting on %s, not %s", contractx.ErrStateConflict, current.Status, expected, role)
	}

	trf, err := m.store.Transition(ctx, trfNumber, current.Status, func(trf *storex.TRF) error {
		trf.Status = storex.StatusRejected
		trf.RejectedBy = string(role)
		trf.RejectionReason = fmt.Sprintf("[%s] %s", strings.ToUpper(string(role)), reason)
		return nil
	})
	if err != nil {
		return nil, wrapConflict(err)
	}
	m.notify(ctx, trf, string(role))
	return trf, nil
}

// StartProcessing marks the execution stage as underway when the first
// booking is confirmed. Already-processing requests pass through.
func (m *Machine) StartProcessing(ctx context.Context, trfNumber string) (*storex.TRF, error) {
	current, err := m.store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, wrapConflict(err)
	}
	if current.Status == storex.StatusProcessing {
		return current, nil
	}
	trf, err := m.store.Transition(ctx, trfNumber, storex.StatusPendingTravelDesk, func(trf *storex.TRF) error {
		trf.Status = storex.StatusProcessing
		return nil
	})
	if err != nil {
		return nil, wrapConflict(err)
	}
	m.notify(ctx, trf, string(contractx.RoleTravelDesk))
	return trf, nil
}

// Complete closes the execution stage, from either the travel desk
// queue or mid-processing.
func (m *Machine) Complete(ctx context.Context, trfNumber string, comments string) (*storex.TRF, error) {
	current, err := m.store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, wrapConflict(err)
	}
	if current.Status.IsTerminal() {
		return nil, terminalErr(current)
	}
	if current.Status != storex.StatusPendingTravelDesk && current.Status != storex.StatusProcessing {
		return nil, fmt.Errorf("%w: %s cannot complete from status %s", contractx.ErrStateConflict, trfNumber, current.Status)
	}

	trf, err := m.store.Transition(ctx, trfNumber, current.Status, func(trf *storex.TRF) error {
		now := m.now()
		if trf.TravelDeskApprovedAt == nil {
			trf.TravelDeskApprovedAt = &now
		}
		if comments != "" {
			trf.TravelDeskComments = comments
		}
		trf.FinalApprovedAt = &now
		trf.Status = storex.StatusCompleted
		return nil
	})
	if err != nil {
		return nil, wrapConflict(err)
	}
	m.notify(ctx, trf, string(contractx.RoleTravelDesk))
	return trf, nil
}

// setStageApproval writes the per-level timestamp and comment. A stage
// that already carries a timestamp is never overwritten.
func setStageApproval(trf *storex.TRF, role contractx.Role, now time.Time, comments string) error {
	slot, commentSlot := stageSlots(trf, role)
	if slot == nil {
		return fmt.Errorf("%w: %s has no approval stage", contractx.ErrValidation, role)
	}
	if *slot != nil {
		return fmt.Errorf("%w: %s stage already approved", contractx.ErrStateConflict, role)
	}
	*slot = &now
	*commentSlot = comments
	return nil
}

func stageSlots(trf *storex.TRF, role contractx.Role) (**time.Time, *string) {
	switch role {
	case contractx.RoleIRM:
		return &trf.IRMApprovedAt, &trf.IRMComments
	case contractx.RoleSRM:
		return &trf.SRMApprovedAt, &trf.SRMComments
	case contractx.RoleBUH:
		return &trf.BUHApprovedAt, &trf.BUHComments
	case contractx.RoleSSUH:
		return &trf.SSUHApprovedAt, &trf.SSUHComments
	case contractx.RoleBGH:
		return &trf.BGHApprovedAt, &trf.BGHComments
	case contractx.RoleSSGH:
		return &trf.SSGHApprovedAt, &trf.SSGHComments
	case contractx.RoleCFO:
		return &trf.CFOApprovedAt, &trf.CFOComments
	case contractx.RoleTravelDesk:
		return &trf.TravelDeskApprovedAt, &trf.TravelDeskComments
	default:
		return nil, nil
	}
}
