package task_test

import (
	"math"
	"testing"
	"taskMarket/internal/models/task"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenTask() *task.Task {
	return task.New(uuid.New(), task.Draft{
		Title:       "Fix sink",
		Description: "Kitchen sink leaks",
		Category:    "plumbing",
		City:        "Austin",
		State:       "TX",
	})
}

// TestLedger_Add тестирует добавление ставок
func TestLedger_Add(t *testing.T) {
	now := time.Now()
	due := now.Add(48 * time.Hour)
	provider := uuid.New()

	tests := []struct {
		name        string
		prepare     func(l *task.Ledger)
		cost        float64
		due         time.Time
		expectedErr error
	}{
		{name: "success - first bid", cost: 100, due: due},
		{name: "error - zero cost", cost: 0, due: due, expectedErr: task.ErrInvalidCost},
		{name: "error - negative cost", cost: -5, due: due, expectedErr: task.ErrInvalidCost},
		{name: "error - NaN cost", cost: math.NaN(), due: due, expectedErr: task.ErrInvalidCost},
		{name: "error - infinite cost", cost: math.Inf(1), due: due, expectedErr: task.ErrInvalidCost},
		{name: "error - zero time", cost: 100, due: time.Time{}, expectedErr: task.ErrInvalidTime},
		{
			name: "error - duplicate pending bid",
			prepare: func(l *task.Ledger) {
				_, err := l.Add(provider, 50, due, now)
				require.NoError(t, err)
			},
			cost:        100,
			due:         due,
			expectedErr: task.ErrDuplicateBid,
		},
		{
			name: "success - provider bids again after rejection",
			prepare: func(l *task.Ledger) {
				own, err := l.Add(provider, 50, due, now)
				require.NoError(t, err)
				other, err := l.Add(uuid.New(), 40, due, now)
				require.NoError(t, err)
				_, _, err = l.Accept(other.ID)
				require.NoError(t, err)
				found, ok := l.Find(own.ID)
				require.True(t, ok)
				require.Equal(t, task.BidRejected, found.Status)
			},
			cost: 100,
			due:  due,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newOpenTask()
			l := tk.Ledger()
			if tt.prepare != nil {
				tt.prepare(l)
			}
			before := len(tk.Bids)

			bid, err := l.Add(provider, tt.cost, tt.due, now)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Len(t, tk.Bids, before)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, task.BidPending, bid.Status)
			assert.Equal(t, provider, bid.ProviderID)
			assert.NotEqual(t, uuid.Nil, bid.ID)
			require.Len(t, tk.Bids, before+1)
			assert.Equal(t, bid, tk.Bids[len(tk.Bids)-1])
		})
	}
}

// TestLedger_Accept тестирует выбор ставки
func TestLedger_Accept(t *testing.T) {
	now := time.Now()
	due := now.Add(24 * time.Hour)

	tk := newOpenTask()
	l := tk.Ledger()
	b1, err := l.Add(uuid.New(), 100, due, now)
	require.NoError(t, err)
	b2, err := l.Add(uuid.New(), 80, due, now)
	require.NoError(t, err)
	b3, err := l.Add(uuid.New(), 90, due, now)
	require.NoError(t, err)

	accepted, rejected, err := l.Accept(b2.ID)
	require.NoError(t, err)

	assert.Equal(t, b2.ID, accepted.ID)
	assert.Equal(t, task.BidAccepted, accepted.Status)
	require.Len(t, rejected, 2)
	assert.Equal(t, b1.ID, rejected[0].ID)
	assert.Equal(t, b3.ID, rejected[1].ID)

	assert.Equal(t, task.BidRejected, tk.Bids[0].Status)
	assert.Equal(t, task.BidAccepted, tk.Bids[1].Status)
	assert.Equal(t, task.BidRejected, tk.Bids[2].Status)
	assert.NoError(t, l.CheckInvariant())
}

func TestLedger_Accept_NotFound(t *testing.T) {
	tk := newOpenTask()
	l := tk.Ledger()
	_, err := l.Add(uuid.New(), 100, time.Now().Add(time.Hour), time.Now())
	require.NoError(t, err)

	_, _, err = l.Accept(uuid.New())
	assert.ErrorIs(t, err, task.ErrBidNotFound)
	assert.Equal(t, task.BidPending, tk.Bids[0].Status)
}

func TestLedger_Accept_TerminalStatuses(t *testing.T) {
	now := time.Now()
	due := now.Add(time.Hour)

	tests := []struct {
		name        string
		target      func(accepted, rejected task.Bid) uuid.UUID
		expectedErr error
	}{
		{
			name:        "error - accept another bid after selection",
			target:      func(_, rejected task.Bid) uuid.UUID { return rejected.ID },
			expectedErr: task.ErrBidSelected,
		},
		{
			name:        "error - accept the accepted bid again",
			target:      func(accepted, _ task.Bid) uuid.UUID { return accepted.ID },
			expectedErr: task.ErrBidSelected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newOpenTask()
			l := tk.Ledger()
			b1, err := l.Add(uuid.New(), 100, due, now)
			require.NoError(t, err)
			b2, err := l.Add(uuid.New(), 80, due, now)
			require.NoError(t, err)

			_, _, err = l.Accept(b1.ID)
			require.NoError(t, err)

			_, rejected, err := l.Accept(tt.target(b1, b2))
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, rejected)

			first, _ := l.Find(b1.ID)
			second, _ := l.Find(b2.ID)
			assert.Equal(t, task.BidAccepted, first.Status)
			assert.Equal(t, task.BidRejected, second.Status)
			assert.NoError(t, l.CheckInvariant())
		})
	}
}

func TestLedger_Accept_RejectedBidWithoutSelection(t *testing.T) {
	now := time.Now()
	tk := newOpenTask()
	l := tk.Ledger()
	b1, err := l.Add(uuid.New(), 100, now.Add(time.Hour), now)
	require.NoError(t, err)
	b2, err := l.Add(uuid.New(), 80, now.Add(time.Hour), now)
	require.NoError(t, err)
	tk.Bids[0].Status = task.BidRejected

	_, _, err = l.Accept(b1.ID)
	assert.ErrorIs(t, err, task.ErrBidTerminal)

	found, _ := l.Find(b2.ID)
	assert.Equal(t, task.BidPending, found.Status)
}

func TestBidStatus_Terminal(t *testing.T) {
	assert.False(t, task.BidPending.Terminal())
	assert.True(t, task.BidAccepted.Terminal())
	assert.True(t, task.BidRejected.Terminal())
}

func TestLedger_CheckInvariant(t *testing.T) {
	now := time.Now()
	tk := newOpenTask()
	l := tk.Ledger()
	_, _ = l.Add(uuid.New(), 100, now.Add(time.Hour), now)
	_, _ = l.Add(uuid.New(), 80, now.Add(time.Hour), now)
	assert.NoError(t, l.CheckInvariant())

	tk.Bids[0].Status = task.BidAccepted
	tk.Bids[1].Status = task.BidAccepted
	assert.Error(t, l.CheckInvariant())
}

func TestLedger_Lookups(t *testing.T) {
	now := time.Now()
	provider := uuid.New()
	tk := newOpenTask()
	l := tk.Ledger()

	assert.False(t, l.HasBidFrom(provider))
	_, ok := l.Accepted()
	assert.False(t, ok)

	bid, err := l.Add(provider, 10, now.Add(time.Hour), now)
	require.NoError(t, err)

	assert.True(t, l.HasBidFrom(provider))
	assert.True(t, l.HasActiveBidFrom(provider))
	found, ok := l.Find(bid.ID)
	assert.True(t, ok)
	assert.Equal(t, bid, found)
	assert.Len(t, l.Bids(), 1)
}
