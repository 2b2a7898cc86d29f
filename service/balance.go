package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"splitledger/ledger"
)

// OverallBalance returns the acting user's net position across every group.
func (s *LedgerService) OverallBalance(actorID string) (ledger.OverallBalance, error) {
	unsettled, err := s.store.GetUnsettledByUser(actorID)
	if err != nil {
		return ledger.OverallBalance{}, err
	}
	return ledger.CalculateOverallBalance(actorID, unsettled), nil
}

// ActivityCount returns how many ledger transactions touch the user,
// settled or not.
func (s *LedgerService) ActivityCount(actorID string) (int64, error) {
	return s.store.CountTransactionsByUser(actorID)
}

// GroupBalances nets a group's unsettled transactions into one signed
// balance per member.
func (s *LedgerService) GroupBalances(actorID string, groupID uuid.UUID) (map[string]decimal.Decimal, error) {
	unsettled, err := s.groupUnsettled(actorID, groupID)
	if err != nil {
		return nil, err
	}
	return ledger.CalculateGroupBalances(unsettled), nil
}

// SimplifiedDebts reduces a group's balances to a minimal payment plan. The
// plan is advisory: it writes nothing to the ledger.
func (s *LedgerService) SimplifiedDebts(actorID string, groupID uuid.UUID) ([]ledger.PaymentInstruction, error) {
	unsettled, err := s.groupUnsettled(actorID, groupID)
	if err != nil {
		return nil, err
	}
	return ledger.SimplifyDebts(ledger.CalculateGroupBalances(unsettled)), nil
}

func (s *LedgerService) groupUnsettled(actorID string, groupID uuid.UUID) ([]ledger.Transaction, error) {
	if _, err := s.GetGroup(actorID, groupID); err != nil {
		return nil, err
	}
	return s.store.GetUnsettledByGroup(groupID)
}
