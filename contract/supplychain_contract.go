package contract

import (
	"fmt"
	"strings"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("coffeetrace.supplychaincontract")

// itemObjectType is used for composite keys and as a 'docType' for CouchDB queries.
const itemObjectType = "Item"

// Constants for input validation and limits.
const (
	maxStringInputLength = 256
	maxNotesLength       = 1024
	maxAuditPageSize     = 100
)

// SupplychainContract tracks coffee lots from harvest to final purchase,
// gating every custody transition on the caller's role and settling payment
// inside the buy transition.
// @contract:SupplychainContract
type SupplychainContract struct {
	contractapi.Contract
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	actorID string
	alias   string
}

// InitLedger bootstraps the system: the caller becomes the single
// administrator and is registered under the given alias. Fails if an
// administrator already exists.
func (s *SupplychainContract) InitLedger(ctx contractapi.TransactionContextInterface, adminAlias string) error {
	logger.Info("Attempting to bootstrap ledger with initial administrator...")
	im := NewIdentityManager(ctx)

	bootstrapped, err := im.Bootstrapped()
	if err != nil {
		return fmt.Errorf("InitLedger: failed to check bootstrap state: %w", err)
	}
	if bootstrapped {
		return fmt.Errorf("system already has an administrator. InitLedger must not be re-run")
	}

	callerID, err := im.GetCallerID()
	if err != nil {
		return fmt.Errorf("InitLedger: failed to get caller identity: %w", err)
	}
	if err := s.validateRequiredString(adminAlias, "adminAlias", maxStringInputLength); err != nil {
		return err
	}

	if err := im.RegisterActor(callerID, adminAlias); err != nil {
		return fmt.Errorf("InitLedger: failed to register bootstrap administrator: %w", err)
	}
	if err := im.SetAdministrator(callerID); err != nil {
		return fmt.Errorf("InitLedger: failed to set bootstrap administrator: %w", err)
	}

	actor := &actorInfo{actorID: callerID, alias: adminAlias}
	if err := s.appendMembershipAudit(ctx, "AdministratorBootstrapped", callerID, actor); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	logger.Infof("Ledger bootstrapped. Actor '%s' (alias: '%s') is now the administrator", callerID, adminAlias)
	return nil
}

// RegisterActor records a participant identity so roles can be granted to it.
// Administrator-only once the system is bootstrapped.
func (s *SupplychainContract) RegisterActor(ctx contractapi.TransactionContextInterface, actorID, alias string) error {
	logger.Infof("Chaincode Call: RegisterActor '%s' with alias '%s'", actorID, alias)
	im := NewIdentityManager(ctx)
	if err := im.RegisterActor(actorID, alias); err != nil {
		return err
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("RegisterActor: failed to get actor info: %w", err)
	}
	return s.appendMembershipAudit(ctx, "ActorRegistered", actorID, actor)
}

// addRole grants a role and, when membership actually changed, records the
// <Role>Added audit event. Repeated adds are silent no-ops.
func (s *SupplychainContract) addRole(ctx contractapi.TransactionContextInterface, targetActorOrAlias, role string) error {
	im := NewIdentityManager(ctx)
	changed, err := im.AddRole(targetActorOrAlias, role)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	targetID, err := im.ResolveActor(targetActorOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve '%s' after role add: %w", targetActorOrAlias, err)
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get actor info after role add: %w", err)
	}
	return s.appendMembershipAudit(ctx, roleEventName(role, "Added"), targetID, actor)
}

func (s *SupplychainContract) removeRole(ctx contractapi.TransactionContextInterface, targetActorOrAlias, role string) error {
	im := NewIdentityManager(ctx)
	changed, err := im.RemoveRole(targetActorOrAlias, role)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	targetID, err := im.ResolveActor(targetActorOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve '%s' after role removal: %w", targetActorOrAlias, err)
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get actor info after role removal: %w", err)
	}
	return s.appendMembershipAudit(ctx, roleEventName(role, "Removed"), targetID, actor)
}

func (s *SupplychainContract) renounceRole(ctx contractapi.TransactionContextInterface, role string) error {
	im := NewIdentityManager(ctx)
	changed, err := im.RenounceRole(role)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get actor info after role renounce: %w", err)
	}
	return s.appendMembershipAudit(ctx, roleEventName(role, "Removed"), actor.actorID, actor)
}

// roleEventName builds event kinds like "FarmerAdded" or "RetailerRemoved".
func roleEventName(role, suffix string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return suffix
	}
	return strings.ToUpper(role[:1]) + role[1:] + suffix
}

// --- Membership operations (admin-gated, idempotent) ---

func (s *SupplychainContract) AddFarmer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: AddFarmer '%s'", actorOrAlias)
	return s.addRole(ctx, actorOrAlias, "farmer")
}

func (s *SupplychainContract) AddDistributor(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: AddDistributor '%s'", actorOrAlias)
	return s.addRole(ctx, actorOrAlias, "distributor")
}

func (s *SupplychainContract) AddRetailer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: AddRetailer '%s'", actorOrAlias)
	return s.addRole(ctx, actorOrAlias, "retailer")
}

func (s *SupplychainContract) AddConsumer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: AddConsumer '%s'", actorOrAlias)
	return s.addRole(ctx, actorOrAlias, "consumer")
}

func (s *SupplychainContract) RemoveFarmer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveFarmer '%s'", actorOrAlias)
	return s.removeRole(ctx, actorOrAlias, "farmer")
}

func (s *SupplychainContract) RemoveDistributor(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveDistributor '%s'", actorOrAlias)
	return s.removeRole(ctx, actorOrAlias, "distributor")
}

func (s *SupplychainContract) RemoveRetailer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveRetailer '%s'", actorOrAlias)
	return s.removeRole(ctx, actorOrAlias, "retailer")
}

func (s *SupplychainContract) RemoveConsumer(ctx contractapi.TransactionContextInterface, actorOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveConsumer '%s'", actorOrAlias)
	return s.removeRole(ctx, actorOrAlias, "consumer")
}

func (s *SupplychainContract) RenounceFarmer(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: RenounceFarmer")
	return s.renounceRole(ctx, "farmer")
}

func (s *SupplychainContract) RenounceDistributor(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: RenounceDistributor")
	return s.renounceRole(ctx, "distributor")
}

func (s *SupplychainContract) RenounceRetailer(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: RenounceRetailer")
	return s.renounceRole(ctx, "retailer")
}

func (s *SupplychainContract) RenounceConsumer(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Chaincode Call: RenounceConsumer")
	return s.renounceRole(ctx, "consumer")
}

// TransferAdministrator reassigns the administrator capability to another
// registered actor. Current administrator only.
func (s *SupplychainContract) TransferAdministrator(ctx contractapi.TransactionContextInterface, newActorOrAlias string) error {
	logger.Infof("Chaincode Call: TransferAdministrator to '%s'", newActorOrAlias)
	im := NewIdentityManager(ctx)
	newAdminID, err := im.TransferAdministrator(newActorOrAlias)
	if err != nil {
		return err
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("TransferAdministrator: failed to get actor info: %w", err)
	}
	return s.appendMembershipAudit(ctx, "AdministratorTransferred", newAdminID, actor)
}

// --- Membership queries ---

// IsMember reports whether an actor holds the given role. Public query.
func (s *SupplychainContract) IsMember(ctx contractapi.TransactionContextInterface, role, actorOrAlias string) (bool, error) {
	logger.Debugf("Chaincode Call: IsMember role '%s' actor '%s'", role, actorOrAlias)
	roleLower := strings.ToLower(strings.TrimSpace(role))
	if !ValidRoles[roleLower] {
		return false, fmt.Errorf("invalid role '%s'", role)
	}
	return NewIdentityManager(ctx).HasRole(actorOrAlias, roleLower)
}

// GetAdministrator returns the ActorID of the current administrator.
func (s *SupplychainContract) GetAdministrator(ctx contractapi.TransactionContextInterface) (string, error) {
	logger.Debug("Chaincode Call: GetAdministrator")
	return NewIdentityManager(ctx).Administrator()
}

// GetActorIdentity returns the registered identity record for an actor.
// Restricted to the administrator and the actor itself.
func (s *SupplychainContract) GetActorIdentity(ctx contractapi.TransactionContextInterface, actorOrAlias string) (*model.IdentityInfo, error) {
	logger.Debugf("Chaincode Call: GetActorIdentity for '%s'", actorOrAlias)
	im := NewIdentityManager(ctx)

	callerID, err := im.GetCallerID()
	if err != nil {
		return nil, fmt.Errorf("GetActorIdentity: failed to get caller ID: %w", err)
	}
	isCallerAdmin, err := im.IsAdministrator(callerID)
	if err != nil {
		return nil, fmt.Errorf("GetActorIdentity: failed to check administrator status: %w", err)
	}
	if !isCallerAdmin {
		targetID, err := im.ResolveActor(actorOrAlias)
		if err != nil {
			return nil, fmt.Errorf("GetActorIdentity: failed to resolve target '%s': %w", actorOrAlias, err)
		}
		if callerID != targetID {
			return nil, fmt.Errorf("%w: only the administrator or the identity owner can read identity details", ErrUnauthorized)
		}
	}
	return im.GetIdentityInfo(actorOrAlias)
}

// GetActorsByRole returns aliases of all members of a role. Public query.
func (s *SupplychainContract) GetActorsByRole(ctx contractapi.TransactionContextInterface, role string) ([]string, error) {
	logger.Debugf("Chaincode Call: GetActorsByRole '%s'", role)
	return NewIdentityManager(ctx).GetActorsByRole(role)
}
