package cmd

import (
	"context"
	"testing"

	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongPost(t *testing.T) {
	buf := captureOutput(t)
	store := state.NewFileStore(t.TempDir())

	require.NoError(t, LongPost(store, LongPostInput{}))
	assert.Contains(t, buf.String(), "Long posts are enabled")

	off := false
	require.NoError(t, LongPost(store, LongPostInput{Value: &off}))
	enabled, err := state.LongPost(store)
	require.NoError(t, err)
	assert.False(t, enabled)
}

type FakeNotificationCounter struct {
	CountFunc func(ctx context.Context) (*node.UnreadNotificationsCount, error)
}

func (f *FakeNotificationCounter) Count(ctx context.Context) (*node.UnreadNotificationsCount, error) {
	if f.CountFunc != nil {
		return f.CountFunc(ctx)
	}
	return &node.UnreadNotificationsCount{}, nil
}

func TestNotificationsCount(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{0, "No unread notifications"},
		{1, "1 unread notification"},
		{12, "12 unread notifications"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			buf := captureOutput(t)
			fake := &FakeNotificationCounter{CountFunc: func(ctx context.Context) (*node.UnreadNotificationsCount, error) {
				return &node.UnreadNotificationsCount{NotificationsCount: tt.count}, nil
			}}
			require.NoError(t, NotificationsCmd{notifications: fake}.Count(context.Background(), NotificationsCountInput{}))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
