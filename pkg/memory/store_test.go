package memory

import (
	"testing"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	store := NewStore(DefaultConfig())
	id, err := store.StartSession(CustomerInfo{
		Email:     "jamie@example.com",
		FirstName: "Jamie",
		LastName:  "Ortiz",
	})
	require.NoError(t, err)
	return store, id
}

func TestStore_StartSession(t *testing.T) {
	store, id := newTestStore(t)

	sess, err := store.Session(id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sess.Status)
	assert.Equal(t, "jamie@example.com", sess.Customer.Email)
	assert.Empty(t, sess.Messages)
	assert.False(t, sess.StartedAt.IsZero())
	assert.Equal(t, 1, store.Count())
}

func TestStore_AddMessage(t *testing.T) {
	t.Run("should append messages in order", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.AddMessage(id, RoleCustomer, "Where is my order?"))
		require.NoError(t, store.AddMessage(id, RoleAgent, "Let me check."))

		sess, err := store.Session(id)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 2)
		assert.Equal(t, RoleCustomer, sess.Messages[0].Role)
		assert.Equal(t, RoleAgent, sess.Messages[1].Role)
	})

	t.Run("should extract order numbers from customer messages", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.AddMessage(id, RoleCustomer, "Where is my order #1234567?"))

		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.Equal(t, []string{"#1234567"}, sess.Context.OrderNumbers)
	})

	t.Run("should not extract from agent messages", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.AddMessage(id, RoleAgent, "Order #1234567 shipped."))

		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.Empty(t, sess.Context.OrderNumbers)
	})

	t.Run("should be idempotent for repeated order numbers", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.AddMessage(id, RoleCustomer, "Checking #1234567 again"))
		require.NoError(t, store.AddMessage(id, RoleCustomer, "Checking #1234567 again"))

		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.Equal(t, []string{"#1234567"}, sess.Context.OrderNumbers)
	})

	t.Run("should fail for unknown session", func(t *testing.T) {
		store := NewStore(DefaultConfig())
		err := store.AddMessage("nope", RoleCustomer, "hello")
		assert.ErrorIs(t, err, errorx.ErrSessionNotFound)
	})
}

func TestStore_RecordToolCall(t *testing.T) {
	t.Run("should append audit records and cache successful data", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.RecordToolCall(id, "get_order_history",
			map[string]interface{}{"customer_id": "c-1"},
			ToolCallResult{Success: true, Data: []string{"#1111111"}},
		))

		sess, err := store.Session(id)
		require.NoError(t, err)
		require.Len(t, sess.ToolCalls, 1)
		assert.Equal(t, "get_order_history", sess.ToolCalls[0].ToolHandle)
		assert.Equal(t, []string{"#1111111"}, sess.Context.ToolData["get_order_history"])
	})

	t.Run("should not cache failed results", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.RecordToolCall(id, "get_order_history", nil,
			ToolCallResult{Success: false, Error: "timeout"},
		))

		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.NotContains(t, sess.Context.ToolData, "get_order_history")
		assert.Equal(t, 1, sess.FailedToolCallCount())
	})
}

func TestStore_Escalate(t *testing.T) {
	t.Run("should mark session escalated", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.Escalate(id, "explicit human request", "summary text"))

		assert.True(t, store.IsEscalated(id))
		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.Equal(t, StatusEscalated, sess.Status)
		assert.Equal(t, "explicit human request", sess.Context.EscalationReason)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		store, id := newTestStore(t)

		require.NoError(t, store.Escalate(id, "first reason", "first summary"))
		require.NoError(t, store.Escalate(id, "second reason", "second summary"))

		sess, err := store.Session(id)
		require.NoError(t, err)
		assert.Equal(t, "first reason", sess.Context.EscalationReason)
		assert.Equal(t, "first summary", sess.Context.EscalationSummary)
	})

	t.Run("unknown session reports not escalated", func(t *testing.T) {
		store := NewStore(DefaultConfig())
		assert.False(t, store.IsEscalated("missing"))
	})
}

func TestStore_SetRouting(t *testing.T) {
	store, id := newTestStore(t)

	prev, err := store.SetRouting(id, "order-support", "ORDER_STATUS")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = store.SetRouting(id, "subscription-support", "SUBSCRIPTION_CANCEL")
	require.NoError(t, err)
	assert.Equal(t, "order-support", prev)

	sess, err := store.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "subscription-support", sess.Context.CurrentAgent)
	assert.Equal(t, []string{"order-support"}, sess.Context.AgentHistory)
	assert.Equal(t, []string{"ORDER_STATUS", "SUBSCRIPTION_CANCEL"}, sess.Context.IntentHistory)
	assert.Equal(t, 2, sess.DistinctIntentCount())
}

func TestStore_Clear(t *testing.T) {
	store, id := newTestStore(t)

	require.NoError(t, store.Clear(id))
	assert.Equal(t, 0, store.Count())
	assert.ErrorIs(t, store.Clear(id), errorx.ErrSessionNotFound)
}

func TestStore_SessionReturnsCopy(t *testing.T) {
	store, id := newTestStore(t)
	require.NoError(t, store.AddMessage(id, RoleCustomer, "first"))

	snapshot, err := store.Session(id)
	require.NoError(t, err)
	snapshot.Messages = append(snapshot.Messages, Message{Role: RoleSystem, Content: "mutated"})
	snapshot.Context.OrderNumbers = append(snapshot.Context.OrderNumbers, "#9999999")

	fresh, err := store.Session(id)
	require.NoError(t, err)
	assert.Len(t, fresh.Messages, 1)
	assert.Empty(t, fresh.Context.OrderNumbers)
}
