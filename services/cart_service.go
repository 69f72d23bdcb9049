package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/models"
)

// CartStore is the storage contract the facade sequences.
type CartStore interface {
	AddItem(ctx context.Context, userID, productID string, quantity int32) error
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	EmptyCart(ctx context.Context, userID string) error
}

// StatsRecorder receives cart observations. Implemented by *analytics.Aggregator.
type StatsRecorder interface {
	ObserveView(ctx context.Context, userID string, totalItems int)
	ObserveAdd(ctx context.Context, userID, productID string, quantity int32)
	ObserveEmpty(ctx context.Context, userID string)
	ObserveError(ctx context.Context, eventType, userID, detail string)
}

// CartService is the user-facing cart API. Every failure is reported to the
// stats recorder exactly once before it is returned.
type CartService interface {
	AddItem(ctx context.Context, userID, productID string, quantity int32) error
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	EmptyCart(ctx context.Context, userID string) error
	CheckHealth(ctx context.Context) ServingStatus
}

type cartServiceImpl struct {
	store  CartStore
	stats  StatsRecorder
	probe  *HealthProbe
	logger *zap.Logger
}

func NewCartService(store CartStore, stats StatsRecorder, probe *HealthProbe, logger *zap.Logger) CartService {
	return &cartServiceImpl{
		store:  store,
		stats:  stats,
		probe:  probe,
		logger: logger,
	}
}

func (s *cartServiceImpl) AddItem(ctx context.Context, userID, productID string, quantity int32) error {
	if err := s.store.AddItem(ctx, userID, productID, quantity); err != nil {
		s.stats.ObserveError(ctx, models.ErrorEventAddToCart, userID, err.Error())
		return err
	}
	s.stats.ObserveAdd(ctx, userID, productID, quantity)
	return nil
}

// GetCart records a view only for non-empty carts.
func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		s.stats.ObserveError(ctx, models.ErrorEventViewCart, userID, err.Error())
		return nil, err
	}
	if !cart.IsEmpty() {
		s.stats.ObserveView(ctx, userID, len(cart.Items))
	}
	return cart, nil
}

// EmptyCart skips the write and the observation when the cart is already empty.
func (s *cartServiceImpl) EmptyCart(ctx context.Context, userID string) error {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		s.stats.ObserveError(ctx, models.ErrorEventEmptyCart, userID, err.Error())
		return err
	}
	if cart.IsEmpty() {
		s.logger.Debug("Cart already empty", zap.String("user_id", userID))
		return nil
	}

	if err := s.store.EmptyCart(ctx, userID); err != nil {
		s.stats.ObserveError(ctx, models.ErrorEventEmptyCart, userID, err.Error())
		return err
	}
	s.stats.ObserveEmpty(ctx, userID)
	return nil
}

func (s *cartServiceImpl) CheckHealth(ctx context.Context) ServingStatus {
	return s.probe.Check(ctx)
}
