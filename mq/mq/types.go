package mq

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

// Mode selects which queue backend backs the wrapper.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// TransactionMessage announces a debt derived from an expense. One message is
// published per transaction whenever an expense is created, updated or deleted.
type TransactionMessage struct {
	ExpenseID  string
	GroupID    uuid.UUID
	FromUserID string
	ToUserID   string
	Amount     decimal.Decimal
}

func (m TransactionMessage) GetTopic() uuid.UUID {
	return m.GroupID
}

// SettlementMessage announces a recorded payment between two users.
type SettlementMessage struct {
	GroupID     uuid.UUID
	FromUserID  string
	ToUserID    string
	Amount      decimal.Decimal
	Description string
}

func (m SettlementMessage) GetTopic() uuid.UUID {
	return m.GroupID
}
