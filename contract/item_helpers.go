package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Object types and counter keys for the item ledger and audit log.
const (
	auditObjectType   = "Audit"   // Audit events. Attribute: zero-padded sequence.
	accountObjectType = "Account" // Settlement accounts. Attribute: ActorID.

	itemSequenceKey  = "ItemSequence"  // Global harvest counter (SKU source)
	auditSequenceKey = "AuditSequence" // Audit log counter
)

// auditSeqWidth pads audit sequence numbers so lexical key order equals
// numeric order in range scans.
const auditSeqWidth = 16

// --- Core Helper Methods ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *SupplychainContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// getCurrentActorInfo resolves the invoker's principal ID and, when
// registered, its alias.
func (s *SupplychainContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	im := NewIdentityManager(ctx)
	actorID, err := im.GetCallerID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's ID: %w", err)
	}

	var alias string
	if idInfo, errInfo := im.GetIdentityInfo(actorID); errInfo == nil && idInfo != nil {
		alias = idInfo.Alias
	} else {
		logger.Debugf("Could not retrieve IdentityInfo (or alias) for actor %s: %v", actorID, errInfo)
	}
	return &actorInfo{actorID: actorID, alias: alias}, nil
}

// createItemCompositeKey creates a composite key for an item by UPC.
func (s *SupplychainContract) createItemCompositeKey(ctx contractapi.TransactionContextInterface, upc uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(itemObjectType, []string{strconv.FormatUint(upc, 10)})
}

func (s *SupplychainContract) createAuditCompositeKey(ctx contractapi.TransactionContextInterface, seq uint64) (string, error) {
	padded := fmt.Sprintf("%0*d", auditSeqWidth, seq)
	return ctx.GetStub().CreateCompositeKey(auditObjectType, []string{padded})
}

// --- Validation Helper Functions ---

func (s *SupplychainContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func (s *SupplychainContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

// --- Sequence counters ---

// nextSequence atomically advances a counter key and returns its new value.
// Counters start at 1. The read-modify-write is safe under Fabric's
// serializable commit discipline: conflicting transactions are invalidated.
func (s *SupplychainContract) nextSequence(ctx contractapi.TransactionContextInterface, counterKey string) (uint64, error) {
	raw, err := ctx.GetStub().GetState(counterKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read counter '%s': %w", counterKey, err)
	}
	var current uint64
	if raw != nil {
		current, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt counter '%s' value '%s': %w", counterKey, string(raw), err)
		}
	}
	next := current + 1
	if err := ctx.GetStub().PutState(counterKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, fmt.Errorf("failed to advance counter '%s': %w", counterKey, err)
	}
	return next, nil
}

// --- Item access and guards ---

// getItemByUPC retrieves and unmarshals an item, failing with ErrItemNotFound
// for unknown UPCs.
func (s *SupplychainContract) getItemByUPC(ctx contractapi.TransactionContextInterface, upc uint64) (*model.Item, error) {
	itemKey, err := s.createItemCompositeKey(ctx, upc)
	if err != nil {
		return nil, fmt.Errorf("failed to create key for item %d: %w", upc, err)
	}
	itemBytes, err := ctx.GetStub().GetState(itemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read item %d from ledger: %w", upc, err)
	}
	if itemBytes == nil {
		return nil, fmt.Errorf("%w: no item with UPC %d", ErrItemNotFound, upc)
	}
	var item model.Item
	if err := json.Unmarshal(itemBytes, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %d: %w", upc, err)
	}
	return &item, nil
}

// getItemForTransition fetches an item and verifies it sits exactly in the
// required predecessor state. Out-of-order and repeated transitions fail
// with ErrInvalidState.
func (s *SupplychainContract) getItemForTransition(ctx contractapi.TransactionContextInterface, upc uint64, required model.ItemState) (*model.Item, error) {
	item, err := s.getItemByUPC(ctx, upc)
	if err != nil {
		return nil, err
	}
	if item.State != required {
		return nil, fmt.Errorf("%w: item %d is '%s', transition requires '%s'",
			ErrInvalidState, upc, item.State, required)
	}
	return item, nil
}

// requireOwner verifies the caller currently holds custody of the item.
func (s *SupplychainContract) requireOwner(item *model.Item, actorID string) error {
	if item.OwnerID != actorID {
		return fmt.Errorf("%w: actor '%s' does not own item %d (owner is '%s')",
			ErrNotOwner, actorID, item.UPC, item.OwnerID)
	}
	return nil
}

// putItem marshals and stores the item under its UPC key.
func (s *SupplychainContract) putItem(ctx contractapi.TransactionContextInterface, item *model.Item) error {
	item.StateName = item.State.String()
	itemKey, err := s.createItemCompositeKey(ctx, item.UPC)
	if err != nil {
		return fmt.Errorf("failed to create key for item %d: %w", item.UPC, err)
	}
	itemBytes, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item %d: %w", item.UPC, err)
	}
	if err := ctx.GetStub().PutState(itemKey, itemBytes); err != nil {
		return fmt.Errorf("failed to save item %d to ledger: %w", item.UPC, err)
	}
	return nil
}

// --- Audit log ---

// appendAuditEvent appends one entry to the append-only audit log and emits
// the matching chaincode event. The record write is part of the transition's
// atomic unit; the chaincode event is a best-effort notification on top.
func (s *SupplychainContract) appendAuditEvent(ctx contractapi.TransactionContextInterface, upc uint64, kind string, actor *actorInfo, newState string) error {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	seq, err := s.nextSequence(ctx, auditSequenceKey)
	if err != nil {
		return fmt.Errorf("failed to allocate audit sequence for '%s': %w", kind, err)
	}
	event := model.AuditEvent{
		ObjectType: auditObjectType,
		Seq:        seq,
		UPC:        upc,
		Kind:       kind,
		ActorID:    actor.actorID,
		ActorAlias: actor.alias,
		NewState:   newState,
		TxID:       ctx.GetStub().GetTxID(),
		Timestamp:  now,
	}
	auditKey, err := s.createAuditCompositeKey(ctx, seq)
	if err != nil {
		return fmt.Errorf("failed to create audit key for seq %d: %w", seq, err)
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event %d: %w", seq, err)
	}
	if err := ctx.GetStub().PutState(auditKey, eventBytes); err != nil {
		return fmt.Errorf("failed to append audit event %d: %w", seq, err)
	}

	if errSet := ctx.GetStub().SetEvent(kind, eventBytes); errSet != nil {
		logger.Warningf("appendAuditEvent: failed to set chaincode event '%s' for seq %d: %v", kind, seq, errSet)
	}
	return nil
}

// appendTransitionAudit records the single lifecycle event of a successful
// transition; the event kind is the name of the new state.
func (s *SupplychainContract) appendTransitionAudit(ctx contractapi.TransactionContextInterface, item *model.Item, actor *actorInfo) error {
	return s.appendAuditEvent(ctx, item.UPC, item.State.String(), actor, item.State.String())
}

// appendMembershipAudit records a role-membership or administrator change.
// The audited subject is the target actor; membership events have no item,
// so UPC is zero and NewState is empty.
func (s *SupplychainContract) appendMembershipAudit(ctx contractapi.TransactionContextInterface, kind, targetActorID string, actor *actorInfo) error {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	seq, err := s.nextSequence(ctx, auditSequenceKey)
	if err != nil {
		return fmt.Errorf("failed to allocate audit sequence for '%s': %w", kind, err)
	}
	event := model.AuditEvent{
		ObjectType: auditObjectType,
		Seq:        seq,
		Kind:       kind,
		ActorID:    targetActorID,
		TxID:       ctx.GetStub().GetTxID(),
		Timestamp:  now,
	}
	if idInfo, errInfo := NewIdentityManager(ctx).GetIdentityInfo(targetActorID); errInfo == nil && idInfo != nil {
		event.ActorAlias = idInfo.Alias
	}
	auditKey, err := s.createAuditCompositeKey(ctx, seq)
	if err != nil {
		return fmt.Errorf("failed to create audit key for seq %d: %w", seq, err)
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event %d: %w", seq, err)
	}
	if err := ctx.GetStub().PutState(auditKey, eventBytes); err != nil {
		return fmt.Errorf("failed to append audit event %d: %w", seq, err)
	}
	if errSet := ctx.GetStub().SetEvent(kind, eventBytes); errSet != nil {
		logger.Warningf("appendMembershipAudit: failed to set chaincode event '%s' for seq %d: %v", kind, seq, errSet)
	}
	return nil
}

// enrichItemAliases populates alias fields on the item if they are empty.
func (s *SupplychainContract) enrichItemAliases(im *IdentityManager, item *model.Item) {
	if item == nil {
		return
	}
	enrich := func(id, currentAlias string) string {
		if currentAlias == "" && id != "" {
			if info, err := im.GetIdentityInfo(id); err == nil && info != nil {
				return info.Alias
			}
		}
		return currentAlias
	}
	item.OwnerAlias = enrich(item.OwnerID, item.OwnerAlias)
	item.OriginFarmerAlias = enrich(item.OriginFarmerID, item.OriginFarmerAlias)
	item.DistributorAlias = enrich(item.DistributorID, item.DistributorAlias)
	item.RetailerAlias = enrich(item.RetailerID, item.RetailerAlias)
	item.ConsumerAlias = enrich(item.ConsumerID, item.ConsumerAlias)
}
