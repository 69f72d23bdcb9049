// Package consumer reacts to order notifications by emptying the ordering
// user's cart.
package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/models"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
)

// Poller is satisfied by *aws.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// CartEmptier is satisfied by services.CartService.
type CartEmptier interface {
	EmptyCart(ctx context.Context, userID string) error
}

type OrderConsumer struct {
	poller Poller
	carts  CartEmptier
	logger *zap.Logger
}

func NewOrderConsumer(poller Poller, carts CartEmptier, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		poller: poller,
		carts:  carts,
		logger: logger,
	}
}

// Start blocks until ctx is cancelled.
func (c *OrderConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting order events consumer")

	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Order events polling stopped", zap.Error(err))
	}
}

// HandleMessage empties the cart for order.placed events. Malformed and
// unrelated messages are acknowledged; storage failures are returned so the
// message is redelivered.
func (c *OrderConsumer) HandleMessage(ctx context.Context, body string) error {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var evt models.OrderEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("Dropping malformed order event", zap.Error(err))
		return nil
	}
	if evt.Event != models.OrderPlacedEvent {
		return nil
	}
	if evt.UserID == "" {
		c.logger.Warn("Dropping order event without user id", zap.String("order_id", evt.OrderID))
		return nil
	}

	if err := c.carts.EmptyCart(ctx, evt.UserID); err != nil {
		return err
	}
	c.logger.Info("Cart emptied after order",
		zap.String("order_id", evt.OrderID),
		zap.String("user_id", evt.UserID),
	)
	return nil
}
