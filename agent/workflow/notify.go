package workflow

import (
	"context"
	"time"

	logx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/pkg/logger"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

// StageEvent describes one workflow transition, published so the next
// actor in the chain can be pinged out of band.
type StageEvent struct {
	TRFNumber    string        `json:"trf_number"`
	EmployeeID   string        `json:"employee_id"`
	EmployeeName string        `json:"employee_name"`
	Status       storex.Status `json:"status"`
	ActedBy      string        `json:"acted_by,omitempty"`
	At           time.Time     `json:"at"`
}

// Notifier receives stage events. Delivery is best effort; the
// transition has already committed by the time it fires.
type Notifier interface {
	StageChanged(ctx context.Context, ev StageEvent)
}

// WithNotifier attaches a transition notifier to the machine.
func (m *Machine) WithNotifier(n Notifier) *Machine {
	m.notifier = n
	return m
}

func (m *Machine) notify(ctx context.Context, trf *storex.TRF, actedBy string) {
	if m.notifier == nil || trf == nil {
		return
	}
	m.notifier.StageChanged(ctx, StageEvent{
		TRFNumber:    trf.TRFNumber,
		EmployeeID:   trf.EmployeeID,
		EmployeeName: trf.EmployeeName,
		Status:       trf.Status,
		ActedBy:      actedBy,
		At:           m.now(),
	})
}

// LogNotifier records stage events in the process log. Used when no
// queue is configured.
type LogNotifier struct{}

func (LogNotifier) StageChanged(ctx context.Context, ev StageEvent) {
	logger := logx.WithTRF(ev.TRFNumber)
	logger.Info().
		Str("status", string(ev.Status)).
		Str("acted_by", ev.ActedBy).
		Msg("trf stage changed")
}
