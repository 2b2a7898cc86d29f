package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"splitledger/ledger"
	"splitledger/mq/mq"
)

// RecordPayment records that the payer handed amount to the payee and marks
// their outstanding debts settled oldest-first. The payment itself is always
// written as a settled transaction, even when no debt exists between the two
// users; a partially covered debt is replaced by a smaller remainder debt
// that keeps its place in the queue.
func (s *LedgerService) RecordPayment(actorID string, groupID uuid.UUID, fromUserID, toUserID string, amount decimal.Decimal, description string) (*ledger.Transaction, error) {
	if actorID != fromUserID && actorID != toUserID {
		return nil, fmt.Errorf("%w: user %s is neither payer nor payee", ledger.ErrUnauthorized, actorID)
	}
	if fromUserID == toUserID {
		return nil, fmt.Errorf("%w: payer and payee must differ", ledger.ErrInvalidArgument)
	}
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{fromUserID, toUserID} {
		if !isMember(group, id) {
			return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrInvalidArgument, id, groupID)
		}
	}

	mu := s.groupMutex(groupID)
	mu.Lock()
	defer mu.Unlock()

	debts, err := s.store.GetUnsettledBetween(fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	var groupDebts []ledger.Transaction
	for _, d := range debts {
		if d.GroupID == groupID {
			groupDebts = append(groupDebts, d)
		}
	}

	ops, err := ledger.AllocatePayment(amount, groupDebts)
	if err != nil {
		return nil, err
	}

	settlement := ledger.Transaction{
		ExpenseID:  ledger.SettlementExpenseID,
		GroupID:    groupID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		IsSettled:  true,
	}
	if err := s.store.SettleDebts(&settlement, ops); err != nil {
		return nil, err
	}

	// The ledger row carries no free text; the description only rides along
	// on the event for downstream consumers.
	if queue := s.queue.GetSettlementMessageQueue(mq.ActionCreate); queue != nil {
		logPublishError("settlement.create", queue.Publish(mq.SettlementMessage{
			GroupID:     groupID,
			FromUserID:  fromUserID,
			ToUserID:    toUserID,
			Amount:      amount,
			Description: description,
		}))
	}
	return &settlement, nil
}

// SettlementHistory lists the acting user's settled transactions, newest
// first.
func (s *LedgerService) SettlementHistory(actorID string) ([]ledger.Transaction, error) {
	return s.store.GetSettlementHistory(actorID)
}
