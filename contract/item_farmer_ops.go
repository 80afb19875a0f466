package contract

import (
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Farmer Operations ---

// HarvestItem creates a new coffee lot. The caller must hold the farmer role
// and becomes both origin farmer and first owner. The UPC is caller-supplied
// and must never have been used; the SKU is allocated from the global harvest
// sequence.
func (s *SupplychainContract) HarvestItem(ctx contractapi.TransactionContextInterface,
	upc uint64, originFarmName, originFarmInformation, originFarmLatitude, originFarmLongitude, productNotes string) (*model.Item, error) {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("HarvestItem: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)
	if err := im.RequireRole("farmer"); err != nil {
		return nil, err
	}

	logger.Infof("Farmer '%s' (alias: '%s') harvesting item %d at farm '%s'", actor.actorID, actor.alias, upc, originFarmName)

	// UPC zero is reserved: audit events not tied to any item carry it.
	if upc == 0 {
		return nil, fmt.Errorf("upc must be positive")
	}
	if err := s.validateRequiredString(originFarmName, "originFarmName", maxStringInputLength); err != nil {
		return nil, err
	}
	if err := s.validateOptionalString(originFarmInformation, "originFarmInformation", maxNotesLength); err != nil {
		return nil, err
	}
	if err := s.validateRequiredString(originFarmLatitude, "originFarmLatitude", maxStringInputLength); err != nil {
		return nil, err
	}
	if err := s.validateRequiredString(originFarmLongitude, "originFarmLongitude", maxStringInputLength); err != nil {
		return nil, err
	}
	if err := s.validateOptionalString(productNotes, "productNotes", maxNotesLength); err != nil {
		return nil, err
	}

	itemKey, err := s.createItemCompositeKey(ctx, upc)
	if err != nil {
		return nil, fmt.Errorf("HarvestItem: failed to create composite key for item %d: %w", upc, err)
	}
	existing, err := ctx.GetStub().GetState(itemKey)
	if err != nil {
		return nil, fmt.Errorf("HarvestItem: failed to check for existing item %d: %w", upc, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: UPC %d is already in use", ErrDuplicateProductCode, upc)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("HarvestItem: failed to get transaction timestamp: %w", err)
	}
	sku, err := s.nextSequence(ctx, itemSequenceKey)
	if err != nil {
		return nil, fmt.Errorf("HarvestItem: %w", err)
	}

	item := model.Item{
		ObjectType:            itemObjectType,
		SKU:                   sku,
		UPC:                   upc,
		ProductID:             sku + upc,
		OwnerID:               actor.actorID,
		OwnerAlias:            actor.alias,
		OriginFarmerID:        actor.actorID,
		OriginFarmerAlias:     actor.alias,
		OriginFarmName:        originFarmName,
		OriginFarmInformation: originFarmInformation,
		OriginFarmLatitude:    originFarmLatitude,
		OriginFarmLongitude:   originFarmLongitude,
		ProductNotes:          productNotes,
		State:                 model.StateHarvested,
		CreatedAt:             now,
		LastUpdatedAt:         now,
	}
	if err := s.putItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("HarvestItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, &item, actor); err != nil {
		return nil, fmt.Errorf("HarvestItem: %w", err)
	}
	logger.Infof("Item %d (SKU %d) harvested by farmer '%s'", upc, sku, actor.alias)
	return &item, nil
}

// ProcessItem advances a harvested lot to Processed. Farmer-only, and the
// caller must be the current owner.
func (s *SupplychainContract) ProcessItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	return s.farmerTransition(ctx, upc, "ProcessItem", model.StateHarvested, model.StateProcessed)
}

// PackItem advances a processed lot to Packed. Farmer-only, owner-only.
func (s *SupplychainContract) PackItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	return s.farmerTransition(ctx, upc, "PackItem", model.StateProcessed, model.StatePacked)
}

// farmerTransition applies a simple owner-gated farmer step: no field
// changes beyond the state advance.
func (s *SupplychainContract) farmerTransition(ctx contractapi.TransactionContextInterface, upc uint64, op string, from, to model.ItemState) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get actor info: %w", op, err)
	}
	item, err := s.getItemForTransition(ctx, upc, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := NewIdentityManager(ctx).RequireRole("farmer"); err != nil {
		return nil, err
	}
	if err := s.requireOwner(item, actor.actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get transaction timestamp: %w", op, err)
	}
	item.State = to
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Infof("Item %d advanced to '%s' by farmer '%s'", upc, to, actor.alias)
	return item, nil
}

// SellItem lists a packed lot for sale at the given price. Farmer-only,
// owner-only. The price must be positive and is immutable once set.
func (s *SupplychainContract) SellItem(ctx contractapi.TransactionContextInterface, upc uint64, price uint64) (*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("SellItem: failed to get actor info: %w", err)
	}
	item, err := s.getItemForTransition(ctx, upc, model.StatePacked)
	if err != nil {
		return nil, fmt.Errorf("SellItem: %w", err)
	}
	if err := NewIdentityManager(ctx).RequireRole("farmer"); err != nil {
		return nil, err
	}
	if err := s.requireOwner(item, actor.actorID); err != nil {
		return nil, fmt.Errorf("SellItem: %w", err)
	}
	if price == 0 {
		return nil, fmt.Errorf("%w: listing price must be positive", ErrInvalidPrice)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("SellItem: failed to get transaction timestamp: %w", err)
	}
	item.ProductPrice = price
	item.State = model.StateForSale
	item.LastUpdatedAt = now

	if err := s.putItem(ctx, item); err != nil {
		return nil, fmt.Errorf("SellItem: %w", err)
	}
	if err := s.appendTransitionAudit(ctx, item, actor); err != nil {
		return nil, fmt.Errorf("SellItem: %w", err)
	}
	logger.Infof("Item %d listed for sale at %d by farmer '%s'", upc, price, actor.alias)
	return item, nil
}
