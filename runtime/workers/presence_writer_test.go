package workers

import (
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceWriter_Applies_Updates_In_Order(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	writer := NewPresenceWriter(slog.Default(), users, metrics, 10, time.Second)
	done := make(chan struct{})

	// Given bob goes online then offline
	gomock.InOrder(
		users.EXPECT().SetOnline(gomock.Any(), "bob", true).Return(nil),
		users.EXPECT().SetOnline(gomock.Any(), "bob", false).DoAndReturn(
			func(context.Context, string, bool) error {
				close(done)
				return nil
			}),
	)
	writer.Record(context.Background(), "bob", true)
	writer.Record(context.Background(), "bob", false)

	// When the writer runs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writer.Run(ctx) }()

	// Then both writes land in order
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("presence updates were not applied")
	}
}

func TestPresenceWriter_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	writer := NewPresenceWriter(slog.Default(), users, metrics, 1, time.Second)

	// When more updates are recorded than the queue holds
	writer.Record(context.Background(), "alice", true)
	writer.Record(context.Background(), "bob", true)

	// Then the overflow is counted, not blocked on
	req.Equal(float64(1), testutil.ToFloat64(metrics.PresenceWrites.WithLabelValues("dropped")))
	req.Len(writer.updates, 1)
}

func TestPresenceWriter_Drains_On_Shutdown(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	writer := NewPresenceWriter(slog.Default(), users, metrics, 10, time.Second)

	// Given pending updates and an already cancelled context
	users.EXPECT().SetOnline(gomock.Any(), "alice", false).Return(nil)
	users.EXPECT().SetOnline(gomock.Any(), "bob", false).Return(fmt.Errorf("closed"))
	writer.Record(context.Background(), "alice", false)
	writer.Record(context.Background(), "bob", false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the writer runs
	err := writer.Run(ctx)

	// Then everything pending was flushed before returning
	req.ErrorIs(err, context.Canceled)
	req.Empty(writer.updates)
	req.Equal(float64(1), testutil.ToFloat64(metrics.PresenceWrites.WithLabelValues("ok")))
	req.Equal(float64(1), testutil.ToFloat64(metrics.PresenceWrites.WithLabelValues("failed")))
}
