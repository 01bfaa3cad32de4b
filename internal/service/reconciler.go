package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/external"
	"ticketera/internal/ledger"
	"ticketera/internal/logger"
	"ticketera/internal/messaging"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/payload"
	"ticketera/internal/storage"
)

// Applied tells which path brought the ledger up to date after a remote success.
type Applied string

const (
	// AppliedOptimistic: the request itself was applied locally.
	AppliedOptimistic Applied = "optimistic"
	// AppliedServerConfirmed: only what the server reported was applied.
	AppliedServerConfirmed Applied = "server-confirmed"
	// AppliedServerRefreshed: the ledger was rebuilt from a fresh copy of the sale.
	AppliedServerRefreshed Applied = "server-refreshed"
)

type Outcome struct {
	Applied     Applied         `json:"applied"`
	Ledger      ledger.Snapshot `json:"ledger"`
	Summary     ledger.Summary  `json:"summary"`
	NewCheckIns int             `json:"newCheckIns,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// Reconciler sends check-ins and redemptions for the active sale and folds
// the result back into the ledger. On failure the ledger is left untouched.
type Reconciler struct {
	flow      *Flow
	backend   Backend
	store     *storage.Service
	publisher messaging.Publisher
	metrics   *metrics.Metrics
}

func NewReconciler(flow *Flow, backend Backend, store *storage.Service, publisher messaging.Publisher, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		flow:      flow,
		backend:   backend,
		store:     store,
		publisher: publisher,
		metrics:   m,
	}
}

func (r *Reconciler) CheckIn(ctx context.Context, indexes []int) (*Outcome, error) {
	const op = "checkin"

	r.flow.mu.Lock()
	defer r.flow.mu.Unlock()

	session := r.flow.ledger.Session()
	if session == nil {
		return nil, r.fail(ctx, op, errNoActiveSession())
	}

	requested, err := validateIndexes(session, indexes)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}

	creds, err := credentials(ctx, r.store)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	ctx = logger.ContextWithSale(ctx, session.SaleIdentifier, creds.EventID)

	result, err := r.backend.CheckIn(ctx, creds, session.SaleIdentifier, requested)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}

	applied := AppliedOptimistic
	marked := requested
	if result.CheckedInAttendees != nil {
		applied = AppliedServerConfirmed
		marked = make([]int, 0, len(result.CheckedInAttendees))
		for _, a := range result.CheckedInAttendees {
			marked = append(marked, a.Index)
		}
	}
	for _, index := range marked {
		if !r.flow.ledger.MarkEntered(index) {
			logger.WithContext(ctx).Warn("Server confirmed an unknown attendee", "attendee_index", index)
		}
	}

	outcome := r.outcome(applied)
	outcome.NewCheckIns = result.NewCheckIns
	if outcome.NewCheckIns == 0 && applied == AppliedOptimistic {
		outcome.NewCheckIns = len(requested)
	}
	outcome.Message = fmt.Sprintf("%d asistente(s) registrado(s)", outcome.NewCheckIns)

	r.metrics.Reconciled(op, string(applied))
	logger.WithContext(ctx).Info("Attendees checked in",
		"requested", requested,
		"applied", applied,
		"new_check_ins", outcome.NewCheckIns)

	publish(ctx, r.publisher, models.EventAttendeesCheckedIn, models.AttendeesCheckedInEvent{
		ID:         uuid.New().String(),
		SaleNumber: session.SaleIdentifier,
		EventID:    creds.EventID,
		Requested:  requested,
		Applied:    marked,
		Path:       string(applied),
		Timestamp:  time.Now(),
	})

	return outcome, nil
}

func (r *Reconciler) RedeemProducts(ctx context.Context, lines []models.RedemptionLine) (*Outcome, error) {
	return r.redeem(ctx, payload.CategoryFood, lines)
}

func (r *Reconciler) RedeemActivities(ctx context.Context, lines []models.RedemptionLine) (*Outcome, error) {
	return r.redeem(ctx, payload.CategoryActivity, lines)
}

func (r *Reconciler) redeem(ctx context.Context, category payload.Category, lines []models.RedemptionLine) (*Outcome, error) {
	op, subject, call := "redeem_products", models.EventProductsRedeemed, r.backend.RedeemProducts
	if category == payload.CategoryActivity {
		op, subject, call = "redeem_activities", models.EventActivitiesRedeemed, r.backend.RedeemActivities
	}

	r.flow.mu.Lock()
	defer r.flow.mu.Unlock()

	session := r.flow.ledger.Session()
	if session == nil {
		return nil, r.fail(ctx, op, errNoActiveSession())
	}

	if err := r.validateLines(session, category, lines); err != nil {
		return nil, r.fail(ctx, op, err)
	}

	creds, err := credentials(ctx, r.store)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	ctx = logger.ContextWithSale(ctx, session.SaleIdentifier, creds.EventID)

	result, err := call(ctx, creds, session.SaleIdentifier, lines)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}

	applied := r.applyRedemption(ctx, creds, session, category, lines, result)

	outcome := r.outcome(applied)
	outcome.Message = "Canje realizado correctamente"

	r.metrics.Reconciled(op, string(applied))
	logger.WithContext(ctx).Info("Items redeemed",
		"category", category,
		"lines", len(lines),
		"applied", applied)

	publish(ctx, r.publisher, subject, models.ItemsRedeemedEvent{
		ID:         uuid.New().String(),
		SaleNumber: session.SaleIdentifier,
		EventID:    creds.EventID,
		Category:   string(category),
		Lines:      lines,
		Path:       string(applied),
		Timestamp:  time.Now(),
	})

	return outcome, nil
}

// applyRedemption prefers a fresh copy of the sale, then the lines the server
// confirmed, and only then the request as sent.
func (r *Reconciler) applyRedemption(ctx context.Context, creds external.Credentials, session *payload.RedemptionSession, category payload.Category, lines []models.RedemptionLine, result *models.RedeemResult) Applied {
	fresh, err := refetch(ctx, r.backend, creds, session)
	if err == nil {
		r.flow.ledger.Initialize(fresh)
		return AppliedServerRefreshed
	}
	logger.WithContext(ctx).Warn("Refresh after redemption failed, applying locally", "error", err)

	applied := AppliedOptimistic
	if len(result.Redemptions) > 0 {
		applied = AppliedServerConfirmed
		lines = result.Redemptions
	}
	for _, line := range lines {
		if _, err := r.flow.ledger.Redeem(category, line.ItemID, line.Cantidad); err != nil {
			logger.WithContext(ctx).Warn("Redemption line not applied", "item_id", line.ItemID, "error", err)
		}
	}
	return applied
}

func (r *Reconciler) outcome(applied Applied) *Outcome {
	return &Outcome{
		Applied: applied,
		Ledger:  r.flow.ledger.Snapshot(),
		Summary: r.flow.ledger.Summary(),
	}
}

func (r *Reconciler) fail(ctx context.Context, op string, err error) error {
	forgetOnAuthFailure(ctx, r.store, err)
	r.metrics.Failed(op, apperrors.Code(err))
	logger.WithContext(ctx).Warn("Validation operation failed",
		"operation", op,
		"code", apperrors.Code(err),
		"error", err)
	return err
}

// validateIndexes drops duplicates and requires every index to exist in the sale.
func validateIndexes(session *payload.RedemptionSession, indexes []int) ([]int, error) {
	if len(indexes) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "Selecciona al menos un asistente")
	}

	seen := make(map[int]bool, len(indexes))
	out := make([]int, 0, len(indexes))
	for _, index := range indexes {
		if seen[index] {
			continue
		}
		if _, ok := session.Attendee(index); !ok {
			return nil, apperrors.New(apperrors.ErrUnknownAttendee, fmt.Sprintf("El asistente %d no pertenece a esta venta", index))
		}
		seen[index] = true
		out = append(out, index)
	}
	return out, nil
}

// validateLines must be called with the flow lock held.
func (r *Reconciler) validateLines(session *payload.RedemptionSession, category payload.Category, lines []models.RedemptionLine) error {
	if len(lines) == 0 {
		return apperrors.New(apperrors.ErrInvalidRequest, "Selecciona al menos un ítem para canjear")
	}

	for _, line := range lines {
		if line.ItemID == "" || line.Cantidad <= 0 {
			return apperrors.New(apperrors.ErrInvalidRequest, "Cada ítem necesita un id y una cantidad positiva")
		}
		if _, ok := session.Redeemable(category, line.ItemID); !ok {
			return apperrors.New(apperrors.ErrUnknownItem, fmt.Sprintf("El ítem %s no pertenece a esta venta", line.ItemID))
		}
	}

	// Compared against what is left before adding, so the running sum never overflows.
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		remaining, _ := r.flow.ledger.Remaining(category, line.ItemID)
		already := requested[line.ItemID]
		if line.Cantidad > remaining-already {
			return apperrors.New(apperrors.ErrQuantityExceeded,
				fmt.Sprintf("Cantidad solicitada excede lo disponible (%d) para %s", remaining, line.ItemID))
		}
		requested[line.ItemID] = already + line.Cantidad
	}
	return nil
}
