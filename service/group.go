package service

import (
	"fmt"

	"github.com/google/uuid"

	dbt "splitledger/db/db"
	"splitledger/ledger"
)

// CreateGroup creates a group owned by the acting user, who becomes its
// first member.
func (s *LedgerService) CreateGroup(actorID, name string) (*dbt.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name must not be empty", ledger.ErrInvalidArgument)
	}

	info := dbt.GroupInfo{Name: name, CreatedBy: actorID}
	if err := s.store.CreateGroup(&info); err != nil {
		return nil, err
	}
	return s.store.GetGroup(info.ID)
}

// AddGroupMember adds a user to a group the acting user belongs to.
func (s *LedgerService) AddGroupMember(actorID string, groupID uuid.UUID, userID string) (*dbt.Group, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !isMember(group, actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, groupID)
	}

	if err := s.store.AddGroupMember(groupID, userID); err != nil {
		return nil, err
	}
	return s.store.GetGroup(groupID)
}

// GetGroup returns a group the acting user belongs to.
func (s *LedgerService) GetGroup(actorID string, groupID uuid.UUID) (*dbt.Group, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !isMember(group, actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, groupID)
	}
	return group, nil
}
