package service

import (
	"context"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Committer hands a committed order over for persistence.
type Committer interface {
	EnqueueCommit(ctx context.Context, req *CommitRequest) error
}

// OpenRequest loads an order into a new editing session. An empty OrderID
// starts a new order.
type OpenRequest struct {
	OrderID          string          `json:"orderId"`
	Items            []EditorItem    `json:"items"`
	OrderDiscount    decimal.Decimal `json:"orderDiscount"`
	PriceIncludesTax *bool           `json:"priceIncludesTax,omitempty"`
}

// OrderService manages order editing sessions.
type OrderService interface {
	Open(ctx context.Context, req OpenRequest) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Commit(ctx context.Context, id uuid.UUID) (*CommitRequest, error)
	Close(ctx context.Context, id uuid.UUID) error
	Sweep(ctx context.Context) int
}

type orderService struct {
	store     *SessionStore
	pricing   PricingService
	committer Committer
	metrics   *telemetry.BusinessMetrics
	logger    *zerolog.Logger
}

// NewOrderService creates a new OrderService instance
func NewOrderService(
	store *SessionStore,
	pricing PricingService,
	committer Committer,
	metrics *telemetry.BusinessMetrics,
	logger *zerolog.Logger,
) OrderService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &orderService{
		store:     store,
		pricing:   pricing,
		committer: committer,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *orderService) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	policy := s.pricing.Policy(ctx, req.PriceIncludesTax)

	editor, err := NewOrderEditor(req.OrderID, req.Items, req.OrderDiscount, policy)
	if err != nil {
		return nil, err
	}

	sess := s.store.Create(editor)
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("order_id", req.OrderID).
		Int("items", len(req.Items)).
		Bool("price_includes_tax", policy.PriceIncludesTax).
		Msg("order session opened")

	if s.metrics != nil {
		s.metrics.SessionsOpened.Inc()
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return sess, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.store.Get(id)
}

// Commit reconciles the session's order, hands it to the committer and closes
// the session. When the committer fails the session stays open so the commit
// can be retried.
func (s *orderService) Commit(ctx context.Context, id uuid.UUID) (*CommitRequest, error) {
	const op = "service.CommitSession"

	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	req, err := sess.Editor.Commit()
	if err != nil {
		return nil, err
	}

	if s.committer != nil {
		if err := s.committer.EnqueueCommit(ctx, req); err != nil {
			sess.Editor.reopen()
			s.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to enqueue order commit")
			return nil, domain.Unavailable(err, op, "Order could not be queued for saving")
		}
	}

	_ = s.store.Delete(id)
	s.logger.Info().
		Str("session_id", id.String()).
		Str("order_id", req.OrderID).
		Str("total", req.Totals.Total).
		Int("changes", len(req.Changes)).
		Msg("order session committed")

	if s.metrics != nil {
		s.metrics.SessionsCommitted.Inc()
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return req, nil
}

func (s *orderService) Close(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return nil
}

func (s *orderService) Sweep(ctx context.Context) int {
	n := s.store.Sweep()
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("expired order sessions removed")
	}
	if s.metrics != nil {
		s.metrics.SessionsExpired.Add(float64(n))
		s.metrics.SessionsActive.Set(float64(s.store.Len()))
	}
	return n
}
