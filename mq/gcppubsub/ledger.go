package gcppubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"splitledger/mq/mq"
)

const (
	groupIDAttribute = "groupId"
)

// subscriptionInfo holds details about an active Pub/Sub subscription.
type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService provides a generic implementation for GCP Pub/Sub
// operations on one topic. Group filtering uses server-side subscription
// filters on the groupId attribute.
type GenericPubSubService[M any] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService creates and initializes a generic service for a
// specific message type, creating the underlying topic if necessary.
func NewGenericPubSubService[M any](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, fmt.Errorf("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		log.Printf("Created Pub/Sub topic: %s", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

// Publish sends a message to the topic with its group ID as an attribute.
func (s *GenericPubSubService[M]) Publish(msg mq.TopicProvider) error {
	typeName := reflect.TypeOf(msg).Name()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName, err)
	}

	pubsubMsg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			groupIDAttribute: msg.GetTopic().String(),
		},
	}

	result := s.topic.Publish(s.ctx, pubsubMsg)
	_, err = result.Get(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName, s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a new filtered subscription on GCP and starts listening for messages.
func (s *GenericPubSubService[M]) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	typeName := reflect.TypeOf(*new(M)).Name()

	gcpSubName := fmt.Sprintf("sub-%s-%s-%s", typeName, groupID.String(), subscriptionID.String())

	config := pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = \"%s\"", groupIDAttribute, groupID.String()),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	}

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, config)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, typeName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			// Delete the subscription from GCP to prevent resource leaks.
			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				log.Printf("Error deleting GCP subscription %s: %v", gcpSub.ID(), deleteErr)
			}
			close(msgChan)
		}()

		// Receive blocks until the context is cancelled.
		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				log.Printf("Error unmarshaling %s for %s: %v. Body: %s", typeName, subscriptionID, err, string(pubsubMsg.Data))
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				log.Printf("Timeout sending %s to msgChan for %s.", typeName, subscriptionID)
			case <-receiveCtx.Done():
				return
			}
		})

		if err != nil && err != context.Canceled {
			log.Printf("Error in Receive loop for %s subscription %s: %v", typeName, subscriptionID, err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the message receiver and deletes the subscription from GCP.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		// Removal from the map happens in the receiver's defer; here we just
		// trigger the cancellation.
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, reflect.TypeOf(*new(M)).Name())
	}
	return nil
}

// Close gracefully shuts down all active subscriptions for this service.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
}

// --- transactionMQ implementation ---
type transactionMQ struct {
	genericService *GenericPubSubService[mq.TransactionMessage]
	action         mq.Action
}

func NewTransactionMessageQueue(ctx context.Context, client *pubsub.Client, action mq.Action) (*transactionMQ, error) {
	topicID := fmt.Sprintf("ledger-transaction-%s", action.String())
	gs, err := NewGenericPubSubService[mq.TransactionMessage](ctx, client, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for Transaction: %w", err)
	}
	return &transactionMQ{genericService: gs, action: action}, nil
}
func (q *transactionMQ) GetAction() mq.Action { return q.action }
func (q *transactionMQ) Publish(msg mq.TransactionMessage) error {
	return q.genericService.Publish(msg)
}
func (q *transactionMQ) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.TransactionMessage, error) {
	return q.genericService.Subscribe(groupID)
}
func (q *transactionMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

// --- settlementMQ implementation ---
type settlementMQ struct {
	genericService *GenericPubSubService[mq.SettlementMessage]
	action         mq.Action
}

func NewSettlementMessageQueue(ctx context.Context, client *pubsub.Client, action mq.Action) (*settlementMQ, error) {
	topicID := fmt.Sprintf("ledger-settlement-%s", action.String())
	gs, err := NewGenericPubSubService[mq.SettlementMessage](ctx, client, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for Settlement: %w", err)
	}
	return &settlementMQ{genericService: gs, action: action}, nil
}
func (q *settlementMQ) GetAction() mq.Action { return q.action }
func (q *settlementMQ) Publish(msg mq.SettlementMessage) error {
	return q.genericService.Publish(msg)
}
func (q *settlementMQ) Subscribe(groupID uuid.UUID) (uuid.UUID, <-chan mq.SettlementMessage, error) {
	return q.genericService.Subscribe(groupID)
}
func (q *settlementMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

// --------- ledger message queue wrapper implementation ---------

type GCPLedgerMessageQueueWrapper struct {
	TransactionMQArray [mq.ActionCnt]*transactionMQ
	SettlementMQArray  [mq.ActionCnt]*settlementMQ
}

func (wrapper *GCPLedgerMessageQueueWrapper) GetTransactionMessageQueue(action mq.Action) mq.TransactionMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.TransactionMQArray[action] == nil {
		return nil
	}
	return wrapper.TransactionMQArray[action]
}

func (wrapper *GCPLedgerMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.SettlementMQArray[action] == nil {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

// NewGCPLedgerMessageQueueWrapper creates a new MQ wrapper instance using GCP Pub/Sub.
func NewGCPLedgerMessageQueueWrapper(ctx context.Context, projectID string) (mq.LedgerMessageQueueWrapper, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}

	wrapper := &GCPLedgerMessageQueueWrapper{}

	// transactions are announced on expense create, update and delete
	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate, mq.ActionDelete} {
		wrapper.TransactionMQArray[action], err = NewTransactionMessageQueue(ctx, client, action)
		if err != nil {
			return nil, err
		}
	}

	// settlements are only ever recorded
	wrapper.SettlementMQArray[mq.ActionCreate], err = NewSettlementMessageQueue(ctx, client, mq.ActionCreate)
	if err != nil {
		return nil, err
	}

	return wrapper, nil
}
