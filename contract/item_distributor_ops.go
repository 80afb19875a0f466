package contract

import (
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Distributor Operations ---

// BuyItem transfers custody of a for-sale lot to the buying distributor and
// settles payment in the same atomic unit. Any registered distributor may
// buy; this is the one transition where the caller need not already be a
// party to the item. The tendered payment must cover the listed price; only
// the price moves to the originating farmer, the excess never leaves the
// buyer's account.
func (s *SupplychainContract) BuyItem(ctx contractapi.TransactionContextInterface, upc uint64, payment uint64) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("BuyItem: failed to get actor info: %w", err)
	}
	item, err := s.getItemForTransition(ctx, upc, model.StateForSale)
	if err != nil {
		return nil, fmt.Errorf("BuyItem: %w", err)
	}
	if err := NewIdentityManager(ctx).RequireRole("distributor"); err != nil {
		return nil, err
	}
	if payment < item.ProductPrice {
		return nil, fmt.Errorf("%w: payment %d is below the listed price %d for item %d",
			ErrInsufficientFunds, payment, item.ProductPrice, upc)
	}

	logger.Infof("Distributor '%s' (alias: '%s') buying item %d for %d (payment %d)",
		actor.actorID, actor.alias, upc, item.ProductPrice, payment)

	// Moving only the price is equivalent to debiting the full payment and
	// refunding the excess, with one less write per account.
	if err := s.settle(ctx, actor.actorID, item.OriginFarmerID, item.ProductPrice); err != nil {
		return nil, fmt.Errorf("BuyItem: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("BuyItem: failed to get transaction timestamp: %w", err)
	}
	item.OwnerID = actor.actorID
	item.OwnerAlias = actor.alias
	item.DistributorID = actor.actorID
	item.DistributorAlias = actor.alias
	item.State = model.StateSold
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("BuyItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("BuyItem: %w", err)
	}
	logger.Infof("Item %d sold to distributor '%s'", upc, actor.alias)
	return item, nil
}

// ShipItem marks a sold lot as shipped. Distributor-only, and the caller
// must be the buying distributor (the current owner).
func (s *SupplychainContract) ShipItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ShipItem: failed to get actor info: %w", err)
	}
	item, err := s.getItemForTransition(ctx, upc, model.StateSold)
	if err != nil {
		return nil, fmt.Errorf("ShipItem: %w", err)
	}
	if err := NewIdentityManager(ctx).RequireRole("distributor"); err != nil {
		return nil, err
	}
	if err := s.requireOwner(item, actor.actorID); err != nil {
		return nil, fmt.Errorf("ShipItem: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("ShipItem: failed to get transaction timestamp: %w", err)
	}
	item.State = model.StateShipped
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("ShipItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("ShipItem: %w", err)
	}
	logger.Infof("Item %d shipped by distributor '%s'", upc, actor.alias)
	return item, nil
}
