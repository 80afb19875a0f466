package contract

import (
	"encoding/json"
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

// GetItem returns the full current record of one item, with aliases
// re-resolved against the identity registry. Open to any caller.
func (s *SupplychainContract) GetItem(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	item, err := s.getItemByUPC(ctx, upc)
	if err != nil {
		return nil, err
	}
	s.enrichItemAliases(NewIdentityManager(ctx), item)
	return item, nil
}

// FetchItemProvenance returns the origin-facing projection of an item:
// who owns it now and where it was grown. Read-only; never mutates state.
func (s *SupplychainContract) FetchItemProvenance(ctx contractapi.TransactionContextInterface, upc uint64) (*model.ItemProvenanceView, error) {
	item, err := s.getItemByUPC(ctx, upc)
	if err != nil {
		return nil, err
	}
	return &model.ItemProvenanceView{
		SKU:                   item.SKU,
		UPC:                   item.UPC,
		OwnerID:               item.OwnerID,
		OriginFarmerID:        item.OriginFarmerID,
		OriginFarmName:        item.OriginFarmName,
		OriginFarmInformation: item.OriginFarmInformation,
		OriginFarmLatitude:    item.OriginFarmLatitude,
		OriginFarmLongitude:   item.OriginFarmLongitude,
	}, nil
}

// FetchItemCommercial returns the commerce-facing projection of an item:
// price, state and the downstream chain parties. Read-only.
func (s *SupplychainContract) FetchItemCommercial(ctx contractapi.TransactionContextInterface, upc uint64) (*model.ItemCommercialView, error) {
	item, err := s.getItemByUPC(ctx, upc)
	if err != nil {
		return nil, err
	}
	return &model.ItemCommercialView{
		SKU:           item.SKU,
		UPC:           item.UPC,
		ProductID:     item.ProductID,
		ProductNotes:  item.ProductNotes,
		ProductPrice:  item.ProductPrice,
		State:         item.State,
		StateName:     item.State.String(),
		DistributorID: item.DistributorID,
		RetailerID:    item.RetailerID,
		ConsumerID:    item.ConsumerID,
	}, nil
}

// GetItemHistory returns the ledger revision history of one item, in the
// order the peer's history index reports it.
func (s *SupplychainContract) GetItemHistory(ctx contractapi.TransactionContextInterface, upc uint64) ([]model.ItemHistoryEntry, error) {
	if _, err := s.getItemByUPC(ctx, upc); err != nil {
		return nil, err
	}
	itemKey, err := s.createItemCompositeKey(ctx, upc)
	if err != nil {
		return nil, fmt.Errorf("GetItemHistory: failed to create key for item %d: %w", upc, err)
	}
	historyIter, err := ctx.GetStub().GetHistoryForKey(itemKey)
	if err != nil {
		return nil, fmt.Errorf("GetItemHistory: failed to get history for item %d: %w", upc, err)
	}
	defer historyIter.Close()

	entries := []model.ItemHistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetItemHistory: error iterating history for item %d: %v. Skipping entry.", upc, iterErr)
			continue
		}
		entry := model.ItemHistoryEntry{
			TxID:     historyItem.TxId,
			IsDelete: historyItem.IsDelete,
		}
		if historyItem.Timestamp != nil {
			entry.Timestamp = historyItem.Timestamp.AsTime()
		}
		if !historyItem.IsDelete {
			var past model.Item
			if err := json.Unmarshal(historyItem.Value, &past); err != nil {
				logger.Warningf("GetItemHistory: error unmarshalling past state of item %d: %v. Skipping entry.", upc, err)
				continue
			}
			entry.State = past.State.String()
			entry.OwnerID = past.OwnerID
			entry.OwnerAlias = past.OwnerAlias
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetMyItems returns every item currently owned by the caller. A full scan
// over the item keyspace; fine at chaincode scale, where a rich-query index
// would be the next step if item counts grow.
func (s *SupplychainContract) GetMyItems(ctx contractapi.TransactionContextInterface) ([]*model.Item, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMyItems: failed to get actor info: %w", err)
	}
	im := NewIdentityManager(ctx)

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(itemObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetMyItems: failed to get item iterator: %w", err)
	}
	defer resultsIterator.Close()

	items := []*model.Item{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetMyItems: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var item model.Item
		if err := json.Unmarshal(queryResponse.Value, &item); err != nil {
			logger.Warningf("GetMyItems: error unmarshalling item (key: %s): %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if item.OwnerID != actor.actorID {
			continue
		}
		s.enrichItemAliases(im, &item)
		items = append(items, &item)
	}
	logger.Debugf("GetMyItems: found %d items owned by '%s'", len(items), actor.alias)
	return items, nil
}

// GetAuditTrail returns audit events with sequence numbers strictly greater
// than afterSeq, in sequence order, at most pageSize per call. A pageSize of
// zero selects the maximum page. Audit keys are zero-padded, so the ledger's
// lexicographic range order is the numeric sequence order.
func (s *SupplychainContract) GetAuditTrail(ctx contractapi.TransactionContextInterface, afterSeq uint64, pageSize uint64) ([]model.AuditEvent, error) {
	if pageSize == 0 || pageSize > maxAuditPageSize {
		pageSize = maxAuditPageSize
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(auditObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetAuditTrail: failed to get audit iterator: %w", err)
	}
	defer resultsIterator.Close()

	events := []model.AuditEvent{}
	for resultsIterator.HasNext() && uint64(len(events)) < pageSize {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetAuditTrail: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var event model.AuditEvent
		if err := json.Unmarshal(queryResponse.Value, &event); err != nil {
			logger.Warningf("GetAuditTrail: error unmarshalling audit event (key: %s): %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if event.Seq <= afterSeq {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// GetItemAuditTrail returns every audit event recorded for one item, in
// sequence order.
func (s *SupplychainContract) GetItemAuditTrail(ctx contractapi.TransactionContextInterface, upc uint64) ([]model.AuditEvent, error) {
	if _, err := s.getItemByUPC(ctx, upc); err != nil {
		return nil, err
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(auditObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetItemAuditTrail: failed to get audit iterator: %w", err)
	}
	defer resultsIterator.Close()

	events := []model.AuditEvent{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetItemAuditTrail: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var event model.AuditEvent
		if err := json.Unmarshal(queryResponse.Value, &event); err != nil {
			logger.Warningf("GetItemAuditTrail: error unmarshalling audit event (key: %s): %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if event.UPC != upc {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
