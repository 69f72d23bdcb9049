package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/apperrors"
	"github.com/MouadFiali/gke-cloud-project/middleware"
	"github.com/MouadFiali/gke-cloud-project/services"
)

// Flusher triggers an out-of-band statistics flush.
type Flusher interface {
	Flush(ctx context.Context) error
}

type CartController struct {
	Service services.CartService
	Stats   Flusher
	Logger  *zap.Logger
}

func NewCartController(svc services.CartService, stats Flusher, logger *zap.Logger) *CartController {
	return &CartController{
		Service: svc,
		Stats:   stats,
		Logger:  logger,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity"`
}

// GetCart returns the caller's cart.
func (cc *CartController) GetCart(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	cart, err := cc.Service.GetCart(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddItem merges one product into the caller's cart.
func (cc *CartController) AddItem(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.Logger.Warn("Invalid AddItem payload", zap.String("user_id", userID), zap.Error(err))
		_ = c.Error(apperrors.Wrap(apperrors.ErrBadRequest, err))
		return
	}

	if err := cc.Service.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EmptyCart clears the caller's cart.
func (cc *CartController) EmptyCart(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	if err := cc.Service.EmptyCart(c.Request.Context(), userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Health answers 200 when serving and 503 otherwise.
func (cc *CartController) Health(c *gin.Context) {
	status := cc.Service.CheckHealth(c.Request.Context())
	code := http.StatusOK
	if status != services.Serving {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status.String()})
}

// FlushStats forces the current statistics window to be reported.
func (cc *CartController) FlushStats(c *gin.Context) {
	if err := cc.Stats.Flush(c.Request.Context()); err != nil {
		_ = c.Error(apperrors.Wrap(apperrors.ErrServiceUnavailable, err))
		return
	}
	c.Status(http.StatusAccepted)
}

func (cc *CartController) userID(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		_ = c.Error(apperrors.Wrap(apperrors.ErrUnauthorized, err))
		return "", false
	}
	return userID, true
}
