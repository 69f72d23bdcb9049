// Package repository implements the cart read-modify-write protocol on top of
// a byte-oriented key-value store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/analytics"
	"github.com/MouadFiali/gke-cloud-project/apperrors"
	"github.com/MouadFiali/gke-cloud-project/codec"
	"github.com/MouadFiali/gke-cloud-project/database"
	"github.com/MouadFiali/gke-cloud-project/models"
)

// UpdateMode selects how AddItem guards its read-modify-write.
type UpdateMode int

const (
	// UpdateAtomic uses the backend's Updater when available and falls back
	// to per-user in-process serialization otherwise.
	UpdateAtomic UpdateMode = iota
	// UpdateUnguarded performs a plain get-then-set. Concurrent adds for the
	// same user may lose increments.
	UpdateUnguarded
)

type Options struct {
	Mode              UpdateMode
	AccessLogInterval time.Duration
}

// CartRepository never caches carts; the store is the only owner of cart data.
type CartRepository struct {
	store    database.KeyValueStore
	updater  database.Updater
	codec    codec.Codec
	throttle *analytics.Throttle
	logger   *zap.Logger
	opts     Options
	locks    stripedLock
}

func NewCartRepository(store database.KeyValueStore, c codec.Codec, throttle *analytics.Throttle, logger *zap.Logger, opts Options) *CartRepository {
	r := &CartRepository{
		store:    store,
		codec:    c,
		throttle: throttle,
		logger:   logger,
		opts:     opts,
	}
	if u, ok := store.(database.Updater); ok && opts.Mode == UpdateAtomic {
		r.updater = u
	}
	return r
}

// AddItem increments productID's quantity in userID's cart, creating the cart
// or the item as needed.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int32) error {
	r.logger.Info("AddItem called",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int32("quantity", quantity),
	)

	merge := func(current []byte, found bool) ([]byte, error) {
		cart := models.NewEmptyCart(userID)
		if found {
			decoded, err := r.codec.Decode(current)
			if err != nil {
				return nil, err
			}
			cart = decoded
		}
		cart.UserID = userID
		cart.Merge(productID, quantity)
		return r.codec.Encode(cart)
	}

	var err error
	switch {
	case r.updater != nil:
		err = r.updater.Update(ctx, userID, merge)
	case r.opts.Mode == UpdateAtomic:
		unlock := r.locks.lock(userID)
		err = r.getThenSet(ctx, userID, merge)
		unlock()
	default:
		err = r.getThenSet(ctx, userID, merge)
	}
	if err != nil {
		return r.storageError("AddItem", userID, err)
	}
	return nil
}

func (r *CartRepository) getThenSet(ctx context.Context, key string, fn database.UpdateFunc) error {
	current, err := r.store.Get(ctx, key)
	found := true
	if errors.Is(err, database.ErrNotFound) {
		found = false
	} else if err != nil {
		return err
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key, next)
}

// GetCart returns userID's cart, or an empty cart when none is stored.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	if r.throttle != nil && r.throttle.ShouldLog("cart:"+userID, r.opts.AccessLogInterval) {
		r.logger.Debug("Cart accessed", zap.String("user_id", userID))
	}

	data, err := r.store.Get(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return models.NewEmptyCart(userID), nil
	}
	if err != nil {
		return nil, r.storageError("GetCart", userID, err)
	}

	cart, err := r.codec.Decode(data)
	if err != nil {
		return nil, r.storageError("GetCart", userID, fmt.Errorf("decode cart: %w", err))
	}
	cart.UserID = userID
	return cart, nil
}

// EmptyCart overwrites userID's record with an empty cart.
func (r *CartRepository) EmptyCart(ctx context.Context, userID string) error {
	r.logger.Info("EmptyCart called", zap.String("user_id", userID))

	data, err := r.codec.Encode(models.NewEmptyCart(userID))
	if err == nil {
		err = r.store.Set(ctx, userID, data)
	}
	if err != nil {
		return r.storageError("EmptyCart", userID, err)
	}
	return nil
}

// Ping reports backend liveness. It never returns an error.
func (r *CartRepository) Ping(ctx context.Context) bool {
	if err := r.store.Ping(ctx); err != nil {
		r.logger.Warn("Cart store ping failed", zap.Error(err))
		return false
	}
	return true
}

func (r *CartRepository) storageError(op, userID string, err error) error {
	r.logger.Error("Cart storage operation failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return apperrors.StorageUnavailable(op, err)
}
