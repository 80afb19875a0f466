package contract

import (
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Consumer Operations ---

// PurchaseItem hands a received lot to the end consumer, the terminal step
// of the chain. Any registered consumer may purchase a received lot.
func (s *SupplychainContract) PurchaseItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("PurchaseItem: failed to get actor info: %w", err)
	}
	item, err := s.getItemForTransition(ctx, upc, model.StateReceived)
	if err != nil {
		return nil, fmt.Errorf("PurchaseItem: %w", err)
	}
	if err := NewIdentityManager(ctx).RequireRole("consumer"); err != nil {
		return nil, err
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("PurchaseItem: failed to get transaction timestamp: %w", err)
	}
	item.OwnerID = actor.actorID
	item.OwnerAlias = actor.alias
	item.ConsumerID = actor.actorID
	item.ConsumerAlias = actor.alias
	item.State = model.StatePurchased
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("PurchaseItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("PurchaseItem: %w", err)
	}
	logger.Infof("Item %d purchased by consumer '%s'", upc, actor.alias)
	return item, nil
}
