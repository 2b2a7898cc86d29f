package goch

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"splitledger/mq/mq"
)

// receiveMsgWithTimeout attempts to receive a message from a channel within
// the given timeout. Returns the zero value and false on timeout or close.
func receiveMsgWithTimeout[T any](tb testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	tb.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			var zero T
			return zero, false
		}
		return msg, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

func isChanClosed[T any](ch <-chan T) bool {
	select {
	case _, ok := <-ch:
		return !ok
	default:
		return false
	}
}

type mockItem struct {
	Value   int
	TopicID uuid.UUID
}

func (item mockItem) GetTopic() uuid.UUID {
	return item.TopicID
}

func TestFanOutQueueCore_PublishSubscribeDeSubscribe(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](0)
	defer core.Stop()
	topic := uuid.New()

	id1, subChan1, err := core.Subscribe(topic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	testMsg := 42
	go func() {
		if pubErr := core.Publish(mockItem{Value: testMsg, TopicID: topic}); pubErr != nil {
			t.Errorf("Publish failed: %v", pubErr)
		}
	}()

	msg, ok := receiveMsgWithTimeout(t, subChan1, time.Second)
	if !ok {
		t.Fatal("did not receive published message")
	}
	if msg.Value != testMsg {
		t.Errorf("got %d, want %d", msg.Value, testMsg)
	}

	if err := core.DeSubscribe(id1); err != nil {
		t.Fatalf("DeSubscribe failed: %v", err)
	}
	if !isChanClosed(subChan1) {
		if _, stillOpen := receiveMsgWithTimeout(t, subChan1, 100*time.Millisecond); stillOpen {
			t.Error("channel should be closed after DeSubscribe")
		}
	}
}

func TestFanOutQueueCore_TopicIsolation(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](10)
	defer core.Stop()

	topicA := uuid.New()
	topicB := uuid.New()
	_, chanA, _ := core.Subscribe(topicA)
	_, chanB, _ := core.Subscribe(topicB)

	if err := core.Publish(mockItem{Value: 1, TopicID: topicA}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msg, ok := receiveMsgWithTimeout(t, chanA, time.Second)
	if !ok || msg.Value != 1 {
		t.Errorf("topic A subscriber should receive the message, got %v ok=%v", msg, ok)
	}
	if _, ok := receiveMsgWithTimeout(t, chanB, 150*time.Millisecond); ok {
		t.Error("topic B subscriber should not receive topic A messages")
	}
}

func TestFanOutQueueCore_DeSubscribeNonExistent(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](0)
	defer core.Stop()

	if err := core.DeSubscribe(uuid.New()); err == nil {
		t.Error("DeSubscribe of unknown ID should fail")
	}
}

func TestFanOutQueueCore_BlockedSubscriberIsRemoved(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](1)
	topic := uuid.New()
	id, subChan, err := core.Subscribe(topic)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Nothing reads subChan; the second message finds the subscriber blocked
	// and the fan-out routine drops it.
	if pubErr := core.Publish(mockItem{Value: 456, TopicID: topic}); pubErr != nil {
		t.Fatalf("Publish failed: %v", pubErr)
	}
	if pubErr := core.Publish(mockItem{Value: 789, TopicID: topic}); pubErr != nil {
		t.Fatalf("Publish failed: %v", pubErr)
	}

	time.Sleep(500 * time.Millisecond)

	core.mu.RLock()
	_, stillSubscribed := core.subscribers[id]
	core.mu.RUnlock()
	if stillSubscribed {
		t.Errorf("blocked subscriber %s not removed", id)
	}

	// Drain whatever was delivered before removal; the channel must end closed
	for range subChan {
	}
	core.Stop()
}

func TestFanOutQueueCore_PublishNoSubscribers(t *testing.T) {
	t.Parallel()
	core := newFanOutQueueCore[mockItem](5)
	defer core.Stop()

	for i := 0; i < 5; i++ {
		if err := core.Publish(mockItem{Value: i, TopicID: uuid.New()}); err != nil {
			t.Errorf("Publish %d with no subscribers failed: %v", i, err)
		}
	}
}

func TestChannelTransactionMessageQueue_Lifecycle(t *testing.T) {
	t.Parallel()
	q := NewChannelTransactionMessageQueue(mq.ActionCreate, 4)
	defer q.core.Stop()

	if q.GetAction() != mq.ActionCreate {
		t.Errorf("got action %v, want %v", q.GetAction(), mq.ActionCreate)
	}

	groupID := uuid.New()
	id, ch, err := q.Subscribe(groupID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := mq.TransactionMessage{
		ExpenseID:  uuid.New().String(),
		GroupID:    groupID,
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     decimal.RequireFromString("30.00"),
	}
	if err := q.Publish(want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, ok := receiveMsgWithTimeout(t, ch, time.Second)
	if !ok {
		t.Fatal("did not receive transaction message")
	}
	if got.ExpenseID != want.ExpenseID || got.FromUserID != want.FromUserID || !got.Amount.Equal(want.Amount) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := q.DeSubscribe(id); err != nil {
		t.Fatalf("DeSubscribe failed: %v", err)
	}
}

func TestNewGoChanLedgerMessageQueueWrapper(t *testing.T) {
	t.Parallel()
	wrapper := NewGoChanLedgerMessageQueueWrapper()

	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		q := wrapper.GetTransactionMessageQueue(action)
		if q == nil {
			t.Errorf("transaction queue for %s should exist", action)
			continue
		}
		if q.GetAction() != action {
			t.Errorf("transaction queue action %v, want %v", q.GetAction(), action)
		}
	}

	if wrapper.GetSettlementMessageQueue(mq.ActionCreate) == nil {
		t.Error("settlement create queue should exist")
	}
	if wrapper.GetSettlementMessageQueue(mq.ActionUpdate) != nil {
		t.Error("settlements are never updated")
	}
	if wrapper.GetTransactionMessageQueue(mq.ActionCnt) != nil {
		t.Error("out-of-range action should return nil")
	}
}

func TestSubscribeProcessor(t *testing.T) {
	t.Parallel()
	q := NewChannelSettlementMessageQueue(mq.ActionCreate, 4)
	defer q.core.Stop()

	groupID := uuid.New()
	out := make(chan string, 4)
	ctx := t.Context()

	mq.SubscribeProcessor(groupID, ctx, q, func(msg mq.SettlementMessage) (string, bool, error) {
		if msg.Amount.IsZero() {
			return "", true, nil
		}
		return msg.FromUserID + "->" + msg.ToUserID, false, nil
	}, out)

	// Give the processor goroutine time to subscribe
	time.Sleep(50 * time.Millisecond)

	_ = q.Publish(mq.SettlementMessage{GroupID: groupID, FromUserID: "alice", ToUserID: "bob", Amount: decimal.Zero})
	_ = q.Publish(mq.SettlementMessage{GroupID: groupID, FromUserID: "alice", ToUserID: "bob", Amount: decimal.RequireFromString("70.00")})

	got, ok := receiveMsgWithTimeout(t, out, time.Second)
	if !ok {
		t.Fatal("did not receive processed message")
	}
	if got != "alice->bob" {
		t.Errorf("got %q, want %q", got, "alice->bob")
	}
}
