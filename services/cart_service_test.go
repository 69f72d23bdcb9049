package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/analytics"
	"github.com/MouadFiali/gke-cloud-project/apperrors"
	"github.com/MouadFiali/gke-cloud-project/codec"
	"github.com/MouadFiali/gke-cloud-project/database"
	"github.com/MouadFiali/gke-cloud-project/models"
	"github.com/MouadFiali/gke-cloud-project/repository"
	"github.com/MouadFiali/gke-cloud-project/services"
)

// ---- fakes ----

type observation struct {
	kind      string
	userID    string
	productID string
	quantity  int32
	total     int
	detail    string
}

type recordingStats struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingStats) record(o observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

func (r *recordingStats) ObserveView(_ context.Context, userID string, totalItems int) {
	r.record(observation{kind: "view", userID: userID, total: totalItems})
}

func (r *recordingStats) ObserveAdd(_ context.Context, userID, productID string, quantity int32) {
	r.record(observation{kind: "add", userID: userID, productID: productID, quantity: quantity})
}

func (r *recordingStats) ObserveEmpty(_ context.Context, userID string) {
	r.record(observation{kind: "empty", userID: userID})
}

func (r *recordingStats) ObserveError(_ context.Context, eventType, userID, detail string) {
	r.record(observation{kind: eventType + "_error", userID: userID, detail: detail})
}

func (r *recordingStats) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.obs))
	for _, o := range r.obs {
		out = append(out, o.kind)
	}
	return out
}

// failingStore fails the configured operations with a storage error.
type failingStore struct {
	cart      *models.Cart
	failGet   bool
	failAdd   bool
	failEmpty bool
	empties   int
}

var errBackend = apperrors.StorageUnavailable("test", errors.New("backend down"))

func (f *failingStore) AddItem(context.Context, string, string, int32) error {
	if f.failAdd {
		return errBackend
	}
	return nil
}

func (f *failingStore) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	if f.failGet {
		return nil, errBackend
	}
	if f.cart == nil {
		return models.NewEmptyCart(userID), nil
	}
	return f.cart, nil
}

func (f *failingStore) EmptyCart(context.Context, string) error {
	if f.failEmpty {
		return errBackend
	}
	f.empties++
	return nil
}

// ---- helpers ----

func newService(t *testing.T) (services.CartService, *recordingStats) {
	t.Helper()
	store, err := database.NewBadgerStore("", 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	throttle := analytics.NewThrottle(clockwork.NewFakeClock())
	repo := repository.NewCartRepository(store, codec.ProtoCodec{}, throttle, zap.NewNop(), repository.Options{
		AccessLogInterval: 5 * time.Minute,
	})
	probe := services.NewHealthProbe(repo, throttle, 180*time.Second, zap.NewNop())
	stats := &recordingStats{}
	return services.NewCartService(repo, stats, probe, zap.NewNop()), stats
}

// ---- tests ----

func TestCartService_AddThenGet(t *testing.T) {
	ctx := context.Background()
	svc, stats := newService(t)

	require.NoError(t, svc.AddItem(ctx, "u1", "SKU1", 2))
	require.NoError(t, svc.AddItem(ctx, "u1", "SKU2", 1))
	require.NoError(t, svc.AddItem(ctx, "u1", "SKU1", 3))

	cart, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.CartItem{
		{ProductID: "SKU1", Quantity: 5},
		{ProductID: "SKU2", Quantity: 1},
	}, cart.Items)

	assert.Equal(t, []string{"add", "add", "add", "view"}, stats.kinds())
	assert.Equal(t, 2, stats.obs[3].total, "view reports the number of distinct items")
}

func TestCartService_EmptyCartOnMissingCartIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, stats := newService(t)

	require.NoError(t, svc.EmptyCart(ctx, "u2"))
	cart, err := svc.GetCart(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.Empty(t, stats.kinds(), "no empty and no view for an empty cart")
}

func TestCartService_EmptyCartClearsItems(t *testing.T) {
	ctx := context.Background()
	svc, stats := newService(t)

	require.NoError(t, svc.AddItem(ctx, "u3", "SKU1", 1))
	require.NoError(t, svc.EmptyCart(ctx, "u3"))

	cart, err := svc.GetCart(ctx, "u3")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, []string{"add", "empty"}, stats.kinds())
}

func TestCartService_SkipsEmptyWriteWhenAlreadyEmpty(t *testing.T) {
	store := &failingStore{}
	stats := &recordingStats{}
	svc := services.NewCartService(store, stats, nil, zap.NewNop())

	require.NoError(t, svc.EmptyCart(context.Background(), "u1"))
	assert.Zero(t, store.empties)
	assert.Empty(t, stats.kinds())
}

func TestCartService_ErrorsAreObservedOnce(t *testing.T) {
	ctx := context.Background()
	nonEmpty := &models.Cart{UserID: "u1", Items: []models.CartItem{{ProductID: "SKU1", Quantity: 1}}}

	tests := []struct {
		name  string
		store *failingStore
		call  func(services.CartService) error
		want  string
	}{
		{
			name:  "add",
			store: &failingStore{failAdd: true},
			call:  func(s services.CartService) error { return s.AddItem(ctx, "u1", "SKU1", 1) },
			want:  "add_to_cart_error",
		},
		{
			name:  "get",
			store: &failingStore{failGet: true},
			call: func(s services.CartService) error {
				_, err := s.GetCart(ctx, "u1")
				return err
			},
			want: "view_cart_error",
		},
		{
			name:  "empty read",
			store: &failingStore{failGet: true},
			call:  func(s services.CartService) error { return s.EmptyCart(ctx, "u1") },
			want:  "empty_cart_error",
		},
		{
			name:  "empty write",
			store: &failingStore{cart: nonEmpty, failEmpty: true},
			call:  func(s services.CartService) error { return s.EmptyCart(ctx, "u1") },
			want:  "empty_cart_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &recordingStats{}
			svc := services.NewCartService(tt.store, stats, nil, zap.NewNop())

			err := tt.call(svc)
			assert.True(t, apperrors.IsStorageUnavailable(err))
			assert.Equal(t, []string{tt.want}, stats.kinds())
			assert.Contains(t, stats.obs[0].detail, "backend down")
		})
	}
}

func TestCartService_CheckHealth(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, services.Serving, svc.CheckHealth(context.Background()))
}
