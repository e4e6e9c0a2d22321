package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

func TestDetectOverload(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.CapacityStatus
		notified bool
		reason   string
	}{
		{"busy to overloaded", domain.StatusBusy, domain.StatusOverloaded, true, ""},
		{"overloaded to critical", domain.StatusOverloaded, domain.StatusCritical, true, ""},
		{"first snapshot critical", "", domain.StatusCritical, true, ""},
		{"still overloaded", domain.StatusOverloaded, domain.StatusOverloaded, false, "status unchanged"},
		{"recovering", domain.StatusCritical, domain.StatusBusy, false, "status not alerting"},
		{"available", domain.StatusBusy, domain.StatusAvailable, false, "status not alerting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := setupStore(t)
			require.NoError(t, s.settings.Save(ctx, domain.Settings{MaxCapacityBase: 12, ChannelID: "C1"}))

			notifier := &mockNotifier{}
			notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

			res, err := NewDetectOverloadHandler(s.settings, notifier, nil).Handle(ctx, OverloadEvent{
				UserID: "u1", UserName: "Alice", OldStatus: tt.from, NewStatus: tt.to, CapacityPercent: 85,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.notified, res.Notified)
			assert.Equal(t, tt.reason, res.Reason)

			if tt.notified {
				notifier.AssertNumberOfCalls(t, "Notify", 1)
				require.NotNil(t, res.Notification)
				assert.Equal(t, "C1", res.Notification.ChannelID)
				assert.Contains(t, res.Notification.Message, "Alice is now "+string(tt.to))
			} else {
				notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDetectOverload_NoChannel(t *testing.T) {
	s := setupStore(t)
	notifier := &mockNotifier{}

	res, err := NewDetectOverloadHandler(s.settings, notifier, nil).Handle(context.Background(), OverloadEvent{
		UserID: "u1", OldStatus: domain.StatusBusy, NewStatus: domain.StatusCritical,
	})
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Equal(t, "no channel configured", res.Reason)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestDetectOverload_NotifierError(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	require.NoError(t, s.settings.Save(ctx, domain.Settings{ChannelID: "C1"}))

	boom := errors.New("webhook down")
	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything).Return(boom)

	_, err := NewDetectOverloadHandler(s.settings, notifier, nil).Handle(ctx, OverloadEvent{
		UserID: "u1", OldStatus: domain.StatusBusy, NewStatus: domain.StatusOverloaded,
	})
	assert.ErrorIs(t, err, boom)
}

func TestDetectOverload_DefaultsToLogNotifier(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	require.NoError(t, s.settings.Save(ctx, domain.Settings{ChannelID: "C1"}))

	res, err := NewDetectOverloadHandler(s.settings, nil, nil).Handle(ctx, OverloadEvent{
		UserID: "u1", OldStatus: domain.StatusBusy, NewStatus: domain.StatusOverloaded, CapacityPercent: 82,
	})
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.Equal(t, "Capacity Alert: u1 is now Overloaded (82%).", res.Notification.Message)
}

func TestOverloadMessage(t *testing.T) {
	msg := OverloadMessage(OverloadEvent{UserName: "Bob", NewStatus: domain.StatusCritical, CapacityPercent: 93})
	assert.Equal(t, "Capacity Alert: Bob is now Critical (93%).", msg)
}
