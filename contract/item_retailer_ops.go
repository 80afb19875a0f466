package contract

import (
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Retailer Operations ---

// ReceiveItem records arrival of a shipped lot at the retailer. Custody
// passes from the shipping distributor to the receiving retailer; any
// registered retailer may receive, since the retailer was not a party to
// the item before this step.
func (s *SupplychainContract) ReceiveItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReceiveItem: failed to get actor info: %w", err)
	}
	item, err := s.getItemForTransition(ctx, upc, model.StateShipped)
	if err != nil {
		return nil, fmt.Errorf("ReceiveItem: %w", err)
	}
	if err := NewIdentityManager(ctx).RequireRole("retailer"); err != nil {
		return nil, err
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReceiveItem: failed to get transaction timestamp: %w", err)
	}
	item.OwnerID = actor.actorID
	item.OwnerAlias = actor.alias
	item.RetailerID = actor.actorID
	item.RetailerAlias = actor.alias
	item.State = model.StateReceived
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("ReceiveItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("ReceiveItem: %w", err)
	}
	logger.Infof("Item %d received by retailer '%s'", upc, actor.alias)
	return item, nil
}
