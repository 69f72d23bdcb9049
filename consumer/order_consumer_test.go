package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/apperrors"
	"github.com/MouadFiali/gke-cloud-project/consumer"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
)

type recordingEmptier struct {
	users []string
	err   error
}

func (r *recordingEmptier) EmptyCart(_ context.Context, userID string) error {
	if r.err != nil {
		return r.err
	}
	r.users = append(r.users, userID)
	return nil
}

// scriptedPoller hands each body to the handler once, then waits for ctx.
type scriptedPoller struct {
	bodies  []string
	results []error
}

func (p *scriptedPoller) StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error {
	for _, b := range p.bodies {
		p.results = append(p.results, handler(ctx, b))
	}
	<-ctx.Done()
	return ctx.Err()
}

func snsWrap(t *testing.T, inner string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"Type": "Notification", "Message": inner})
	require.NoError(t, err)
	return string(b)
}

func TestOrderConsumer_HandleMessage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantUsers []string
	}{
		{"raw order placed", `{"event":"order.placed","order_id":"o1","user_id":"u1"}`, []string{"u1"}},
		{"sns envelope", snsWrap(t, `{"event":"order.placed","order_id":"o2","user_id":"u2"}`), []string{"u2"}},
		{"other event", `{"event":"order.cancelled","user_id":"u3"}`, nil},
		{"missing user", `{"event":"order.placed","order_id":"o4"}`, nil},
		{"malformed", `not json`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &recordingEmptier{}
			c := consumer.NewOrderConsumer(nil, carts, zap.NewNop())

			assert.NoError(t, c.HandleMessage(context.Background(), tt.body))
			assert.Equal(t, tt.wantUsers, carts.users)
		})
	}
}

func TestOrderConsumer_StorageFailureIsRetried(t *testing.T) {
	carts := &recordingEmptier{err: apperrors.StorageUnavailable("EmptyCart", errors.New("down"))}
	c := consumer.NewOrderConsumer(nil, carts, zap.NewNop())

	err := c.HandleMessage(context.Background(), `{"event":"order.placed","user_id":"u1"}`)
	assert.True(t, apperrors.IsStorageUnavailable(err))
}

func TestOrderConsumer_StartStopsOnCancel(t *testing.T) {
	poller := &scriptedPoller{bodies: []string{`{"event":"order.placed","user_id":"u1"}`}}
	carts := &recordingEmptier{}
	c := consumer.NewOrderConsumer(poller, carts, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Equal(t, []string{"u1"}, carts.users)
	assert.Equal(t, []error{nil}, poller.results)
}
