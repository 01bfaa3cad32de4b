package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/logger"
	"ticketera/internal/messaging"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/payload"
	"ticketera/internal/storage"
)

const limitedNotice = "No se pudieron obtener los detalles completos de la venta. Se muestra la información del QR."

type ScanService struct {
	flow      *Flow
	backend   Backend
	store     *storage.Service
	publisher messaging.Publisher
	metrics   *metrics.Metrics
}

func NewScanService(flow *Flow, backend Backend, store *storage.Service, publisher messaging.Publisher, m *metrics.Metrics) *ScanService {
	return &ScanService{
		flow:      flow,
		backend:   backend,
		store:     store,
		publisher: publisher,
		metrics:   m,
	}
}

// Scan resolves QR text into the active sale. A QR that only identifies the sale
// is completed from the backend; if that fails the QR alone is used and the
// session is flagged Limited.
func (s *ScanService) Scan(ctx context.Context, text string) (*State, error) {
	qr, err := payload.ParseQR(text)
	if err != nil {
		s.metrics.Scan("malformed")
		return nil, err
	}
	ctx = logger.ContextWithSale(ctx, qr.SaleIdentifier, qr.EventID)

	var session *payload.RedemptionSession
	if qr.Simple() {
		session, err = s.complete(ctx, qr)
	} else {
		session, err = qr.Session()
	}
	if err != nil {
		s.metrics.Scan("malformed")
		return nil, err
	}

	state := s.flow.Initialize(session)

	result := "full"
	if session.Limited {
		result = "limited"
	}
	s.metrics.Scan(result)
	logger.WithContext(ctx).Info("Sale scanned",
		"attendees", len(session.Attendees),
		"shape", session.Shape,
		"limited", session.Limited)

	publish(ctx, s.publisher, models.EventSaleScanned, models.SaleScannedEvent{
		ID:         uuid.New().String(),
		SaleNumber: session.SaleIdentifier,
		EventID:    session.Event.ID,
		Attendees:  len(session.Attendees),
		Limited:    session.Limited,
		Timestamp:  time.Now(),
	})

	return state, nil
}

func (s *ScanService) complete(ctx context.Context, qr *payload.QRCode) (*payload.RedemptionSession, error) {
	creds, err := credentials(ctx, s.store)
	if err == nil {
		var fetched map[string]any
		fetched, err = fetchSale(ctx, s.backend, creds, qr.SaleIdentifier)
		if err == nil {
			return qr.MergeWith(fetched)
		}
		forgetOnAuthFailure(ctx, s.store, err)
	}

	logger.WithContext(ctx).Warn("Could not fetch sale details, using QR data", "error", err)

	session, qrErr := qr.Session()
	if qrErr != nil {
		return nil, qrErr
	}
	session.Limited = true
	session.Notice = limitedNotice
	return session, nil
}

// Refresh re-derives the active sale from the server.
func (s *ScanService) Refresh(ctx context.Context) (*State, error) {
	s.flow.mu.Lock()
	defer s.flow.mu.Unlock()

	prev := s.flow.ledger.Session()
	if prev == nil {
		return nil, errNoActiveSession()
	}

	creds, err := credentials(ctx, s.store)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWithSale(ctx, prev.SaleIdentifier, creds.EventID)

	session, err := refetch(ctx, s.backend, creds, prev)
	if err != nil {
		forgetOnAuthFailure(ctx, s.store, err)
		s.metrics.Failed("refresh", apperrors.Code(err))
		return nil, err
	}

	s.flow.ledger.Initialize(session)
	return s.flow.stateLocked(), nil
}

// Clear discards the active sale.
func (s *ScanService) Clear() {
	s.flow.Clear()
}
