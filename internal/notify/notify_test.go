package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"taskMarket/internal/notify"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func TestNATSNotifier_Notify(t *testing.T) {
	event := notify.NewEvent(notify.KindBidPlaced, uuid.New(), uuid.New(), map[string]any{"cost": 100.0})

	tests := []struct {
		name        string
		prefix      string
		subject     string
		publishErr  error
		expectError bool
	}{
		{name: "success - custom prefix", prefix: "market", subject: "market.bid.placed"},
		{name: "success - default prefix", prefix: "", subject: "marketplace.events.bid.placed"},
		{name: "error - publish fails", prefix: "market", subject: "market.bid.placed", publishErr: errors.New("nats down"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := new(MockPublisher)
			pub.On("Publish", tt.subject, mock.MatchedBy(func(data []byte) bool {
				var decoded notify.Event
				if err := json.Unmarshal(data, &decoded); err != nil {
					return false
				}
				return decoded.ID == event.ID && decoded.Kind == event.Kind && decoded.RecipientID == event.RecipientID
			})).Return(tt.publishErr)

			n := notify.NewNATSNotifier(pub, tt.prefix)
			err := n.Notify(context.Background(), event)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			pub.AssertExpectations(t)
		})
	}
}

func TestNATSNotifier_CancelledContext(t *testing.T) {
	pub := new(MockPublisher)
	n := notify.NewNATSNotifier(pub, "m")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, notify.NewEvent(notify.KindTaskCompleted, uuid.New(), uuid.New(), nil))
	assert.ErrorIs(t, err, context.Canceled)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestMulti_Notify(t *testing.T) {
	var delivered []notify.Kind
	ok := notify.NotifierFunc(func(ctx context.Context, e notify.Event) error {
		delivered = append(delivered, e.Kind)
		return nil
	})
	failing := notify.NotifierFunc(func(ctx context.Context, e notify.Event) error {
		return errors.New("smtp down")
	})

	m := notify.Multi{ok, failing, ok}
	err := m.Notify(context.Background(), notify.NewEvent(notify.KindRatingReceived, uuid.New(), uuid.New(), nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, []notify.Kind{notify.KindRatingReceived, notify.KindRatingReceived}, delivered)

	assert.NoError(t, notify.Multi{ok}.Notify(context.Background(), notify.Event{}))
}

func TestLogNotifier_And_Nop(t *testing.T) {
	e := notify.NewEvent(notify.KindBidRejected, uuid.New(), uuid.New(), nil)
	assert.NoError(t, notify.LogNotifier{}.Notify(context.Background(), e))
	assert.NoError(t, notify.Nop.Notify(context.Background(), e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
}
