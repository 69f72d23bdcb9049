package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/analytics"
)

type ServingStatus int

const (
	NotServing ServingStatus = iota
	Serving
)

func (s ServingStatus) String() string {
	if s == Serving {
		return "SERVING"
	}
	return "NOT_SERVING"
}

// Pinger reports backend liveness without failing.
type Pinger interface {
	Ping(ctx context.Context) bool
}

const healthThrottleKey = "health"

// HealthProbe turns store liveness into a serving status. Its diagnostic line
// is emitted at most once per interval.
type HealthProbe struct {
	store    Pinger
	throttle *analytics.Throttle
	interval time.Duration
	logger   *zap.Logger
}

func NewHealthProbe(store Pinger, throttle *analytics.Throttle, interval time.Duration, logger *zap.Logger) *HealthProbe {
	return &HealthProbe{
		store:    store,
		throttle: throttle,
		interval: interval,
		logger:   logger,
	}
}

func (p *HealthProbe) Check(ctx context.Context) ServingStatus {
	if p.throttle.ShouldLog(healthThrottleKey, p.interval) {
		p.logger.Info("Checking CartService health")
	}
	if p.store.Ping(ctx) {
		return Serving
	}
	return NotServing
}
