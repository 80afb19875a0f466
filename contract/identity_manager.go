package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var idLogger = flogging.MustGetLogger("coffeetrace.identitymanager")

// Object types for composite keys.
const (
	identityObjectType = "Identity" // Stores IdentityInfo objects. Attribute: ActorID.
	aliasObjectType    = "Alias"    // Maps Alias to ActorID. Attribute: Alias.
)

// administratorKey is the state key holding the single administrator ActorID.
// There is exactly one administrator at any time; the capability moves only
// through TransferAdministrator.
const administratorKey = "Administrator"

// ValidRoles defines the set of permissible roles in the system.
// "administrator" is a separate singleton capability, not a role in this list.
var ValidRoles = map[string]bool{
	"farmer":      true,
	"distributor": true,
	"retailer":    true,
	"consumer":    true,
}

// IdentityManager handles actor registration, role membership and the
// administrator capability. All mutations are admin-gated except renouncing
// one's own role.
type IdentityManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewIdentityManager creates a new instance of IdentityManager.
func NewIdentityManager(ctx contractapi.TransactionContextInterface) *IdentityManager {
	return &IdentityManager{Ctx: ctx}
}

func (im *IdentityManager) getCurrentTxTimestamp() (time.Time, error) {
	ts, err := im.Ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func (im *IdentityManager) getListOfValidRoles() []string {
	keys := make([]string, 0, len(ValidRoles))
	for k := range ValidRoles {
		keys = append(keys, k)
	}
	return keys
}

// --- Key Creation Helpers ---

func (im *IdentityManager) createIdentityCompositeKey(actorID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(identityObjectType, []string{actorID})
}

func (im *IdentityManager) createAliasCompositeKey(alias string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(aliasObjectType, []string{alias})
}

// --- Caller identity ---

// GetCallerID retrieves the principal identifier of the current transactor.
// Authentication happened at the peer; the returned string is trusted as-is.
func (im *IdentityManager) GetCallerID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	return id, nil
}

// --- Registration and resolution ---

// RegisterActor records an actor under its principal ID and a unique alias.
// Before the system is bootstrapped anyone may register (so the first
// administrator can register itself); afterwards only the administrator may.
// Re-registering an existing actor updates its alias.
func (im *IdentityManager) RegisterActor(actorID, alias string) error {
	bootstrapped, err := im.Bootstrapped()
	if err != nil {
		return fmt.Errorf("failed to check bootstrap state during RegisterActor: %w", err)
	}
	callerID, err := im.GetCallerID()
	if err != nil {
		return fmt.Errorf("failed to get caller ID for RegisterActor: %w", err)
	}
	if bootstrapped {
		if err := im.RequireAdministrator(callerID); err != nil {
			return fmt.Errorf("RegisterActor: %w", err)
		}
	} else {
		idLogger.Infof("RegisterActor proceeding in bootstrap mode: caller '%s'", callerID)
	}

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return errors.New("actorID cannot be empty")
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return errors.New("alias cannot be empty")
	}

	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}

	aliasKey, err := im.createAliasCompositeKey(alias)
	if err != nil {
		return fmt.Errorf("failed to create alias composite key for '%s': %w", alias, err)
	}
	existingIDForAlias, err := im.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return fmt.Errorf("failed to check alias availability for '%s': %w", alias, err)
	}
	if existingIDForAlias != nil && string(existingIDForAlias) != actorID {
		return fmt.Errorf("alias '%s' is already in use by actor '%s'", alias, string(existingIDForAlias))
	}

	identityKey, err := im.createIdentityCompositeKey(actorID)
	if err != nil {
		return fmt.Errorf("failed to create identity composite key for '%s': %w", actorID, err)
	}
	identityInfoBytes, err := im.Ctx.GetStub().GetState(identityKey)
	if err != nil {
		return fmt.Errorf("failed to get identity state for '%s': %w", actorID, err)
	}

	var idInfo model.IdentityInfo
	if identityInfoBytes == nil {
		idInfo = model.IdentityInfo{
			ObjectType:    identityObjectType,
			ActorID:       actorID,
			Alias:         alias,
			Roles:         []string{},
			RegisteredBy:  callerID,
			RegisteredAt:  now,
			LastUpdatedAt: now,
		}
		idLogger.Infof("Registering new actor '%s' with alias '%s' by '%s'", actorID, alias, callerID)
	} else {
		if err := json.Unmarshal(identityInfoBytes, &idInfo); err != nil {
			return fmt.Errorf("failed to unmarshal existing IdentityInfo for '%s': %w", actorID, err)
		}
		if idInfo.Alias != alias && idInfo.Alias != "" {
			oldAliasKey, keyErr := im.createAliasCompositeKey(idInfo.Alias)
			if keyErr == nil {
				if errDel := im.Ctx.GetStub().DelState(oldAliasKey); errDel != nil {
					idLogger.Warningf("Failed to delete old alias key for actor '%s': %v", actorID, errDel)
				}
			}
		}
		idInfo.Alias = alias
		idInfo.LastUpdatedAt = now
		idLogger.Infof("Updating existing actor '%s' with new alias '%s' by '%s'", actorID, alias, callerID)
	}

	updatedBytes, err := json.Marshal(idInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal IdentityInfo for '%s': %w", actorID, err)
	}
	if err := im.Ctx.GetStub().PutState(identityKey, updatedBytes); err != nil {
		return fmt.Errorf("failed to save IdentityInfo for '%s': %w", actorID, err)
	}
	if err := im.Ctx.GetStub().PutState(aliasKey, []byte(actorID)); err != nil {
		return fmt.Errorf("failed to save alias mapping '%s' -> '%s': %w", alias, actorID, err)
	}
	return nil
}

// ResolveActor maps an alias to its ActorID. Inputs that are already a
// registered ActorID pass through unchanged.
func (im *IdentityManager) ResolveActor(actorOrAlias string) (string, error) {
	trimmed := strings.TrimSpace(actorOrAlias)
	if trimmed == "" {
		return "", errors.New("actorOrAlias cannot be empty")
	}

	identityKey, err := im.createIdentityCompositeKey(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to create identity composite key for resolving '%s': %w", trimmed, err)
	}
	identityBytes, err := im.Ctx.GetStub().GetState(identityKey)
	if err != nil {
		return "", fmt.Errorf("ledger error when resolving actor '%s': %w", trimmed, err)
	}
	if identityBytes != nil {
		return trimmed, nil
	}

	aliasKey, err := im.createAliasCompositeKey(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to create alias composite key for resolving '%s': %w", trimmed, err)
	}
	actorIDBytes, err := im.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return "", fmt.Errorf("ledger error when querying alias '%s': %w", trimmed, err)
	}
	if actorIDBytes != nil {
		return string(actorIDBytes), nil
	}
	return "", fmt.Errorf("actor '%s' not found", trimmed)
}

// GetIdentityInfo returns the IdentityInfo for an actor or alias.
func (im *IdentityManager) GetIdentityInfo(actorOrAlias string) (*model.IdentityInfo, error) {
	actorID, err := im.ResolveActor(actorOrAlias)
	if err != nil {
		return nil, err
	}
	return im.getIdentityInfoByActorID(actorID)
}

func (im *IdentityManager) getIdentityInfoByActorID(actorID string) (*model.IdentityInfo, error) {
	identityKey, err := im.createIdentityCompositeKey(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity composite key for '%s': %w", actorID, err)
	}
	identityInfoBytes, err := im.Ctx.GetStub().GetState(identityKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving IdentityInfo for '%s': %w", actorID, err)
	}
	if identityInfoBytes == nil {
		return nil, fmt.Errorf("identity record not found for actor '%s'", actorID)
	}
	var idInfo model.IdentityInfo
	if err := json.Unmarshal(identityInfoBytes, &idInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal IdentityInfo for '%s': %w", actorID, err)
	}
	if idInfo.Roles == nil {
		idInfo.Roles = []string{}
	}
	return &idInfo, nil
}

// --- Role membership ---

// AddRole grants a role to the target actor. Admin-gated. Adding a role the
// actor already holds is a no-op; the returned flag reports whether the
// membership actually changed so the caller can suppress duplicate events.
func (im *IdentityManager) AddRole(targetActorOrAlias, role string) (bool, error) {
	callerID, err := im.GetCallerID()
	if err != nil {
		return false, fmt.Errorf("failed to get caller ID for AddRole: %w", err)
	}
	if err := im.RequireAdministrator(callerID); err != nil {
		return false, err
	}

	roleLower := strings.ToLower(strings.TrimSpace(role))
	if !ValidRoles[roleLower] {
		return false, fmt.Errorf("invalid role: '%s'. Valid roles are: %v", role, im.getListOfValidRoles())
	}

	targetID, err := im.ResolveActor(targetActorOrAlias)
	if err != nil {
		return false, fmt.Errorf("failed to resolve target actor '%s' for AddRole: %w", targetActorOrAlias, err)
	}
	idInfo, err := im.getIdentityInfoByActorID(targetID)
	if err != nil {
		return false, fmt.Errorf("cannot add role: target actor '%s' must be registered first: %w", targetActorOrAlias, err)
	}

	for _, existing := range idInfo.Roles {
		if existing == roleLower {
			idLogger.Infof("Role '%s' already assigned to actor '%s' (%s). No action needed.", roleLower, idInfo.Alias, targetID)
			return false, nil
		}
	}

	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return false, err
	}
	idInfo.Roles = append(idInfo.Roles, roleLower)
	idInfo.LastUpdatedAt = now

	if err := im.saveIdentityInfo(idInfo); err != nil {
		return false, fmt.Errorf("failed to save IdentityInfo after adding role '%s' to '%s': %w", roleLower, targetID, err)
	}
	idLogger.Infof("Role '%s' added to actor '%s' (%s) by administrator '%s'", roleLower, idInfo.Alias, targetID, callerID)
	return true, nil
}

// RemoveRole revokes a role from the target actor. Admin-gated. Removing a
// role the actor does not hold is a no-op.
func (im *IdentityManager) RemoveRole(targetActorOrAlias, role string) (bool, error) {
	callerID, err := im.GetCallerID()
	if err != nil {
		return false, fmt.Errorf("failed to get caller ID for RemoveRole: %w", err)
	}
	if err := im.RequireAdministrator(callerID); err != nil {
		return false, err
	}
	return im.removeRoleFrom(targetActorOrAlias, role, callerID)
}

// RenounceRole removes a role from the caller itself. No admin required.
func (im *IdentityManager) RenounceRole(role string) (bool, error) {
	callerID, err := im.GetCallerID()
	if err != nil {
		return false, fmt.Errorf("failed to get caller ID for RenounceRole: %w", err)
	}
	return im.removeRoleFrom(callerID, role, callerID)
}

func (im *IdentityManager) removeRoleFrom(targetActorOrAlias, role, callerID string) (bool, error) {
	roleLower := strings.ToLower(strings.TrimSpace(role))

	targetID, err := im.ResolveActor(targetActorOrAlias)
	if err != nil {
		return false, fmt.Errorf("failed to resolve target actor '%s' for role removal: %w", targetActorOrAlias, err)
	}
	idInfo, err := im.getIdentityInfoByActorID(targetID)
	if err != nil {
		return false, fmt.Errorf("cannot remove role: target actor '%s' not found: %w", targetActorOrAlias, err)
	}

	found := false
	newRoles := []string{}
	for _, r := range idInfo.Roles {
		if r == roleLower {
			found = true
		} else {
			newRoles = append(newRoles, r)
		}
	}
	if !found {
		idLogger.Infof("Role '%s' not held by actor '%s' (%s). No action taken for removal.", roleLower, idInfo.Alias, targetID)
		return false, nil
	}

	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return false, err
	}
	idInfo.Roles = newRoles
	idInfo.LastUpdatedAt = now

	if err := im.saveIdentityInfo(idInfo); err != nil {
		return false, fmt.Errorf("failed to save IdentityInfo after removing role '%s' from '%s': %w", roleLower, targetID, err)
	}
	idLogger.Infof("Role '%s' removed from actor '%s' (%s) by '%s'", roleLower, idInfo.Alias, targetID, callerID)
	return true, nil
}

func (im *IdentityManager) saveIdentityInfo(idInfo *model.IdentityInfo) error {
	identityKey, err := im.createIdentityCompositeKey(idInfo.ActorID)
	if err != nil {
		return fmt.Errorf("failed to create identity key for '%s': %w", idInfo.ActorID, err)
	}
	updatedBytes, err := json.Marshal(idInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal IdentityInfo for '%s': %w", idInfo.ActorID, err)
	}
	return im.Ctx.GetStub().PutState(identityKey, updatedBytes)
}

// HasRole reports whether an actor holds the given role. Unknown actors
// simply hold no roles.
func (im *IdentityManager) HasRole(actorOrAlias, role string) (bool, error) {
	idInfo, err := im.GetIdentityInfo(actorOrAlias)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("error resolving actor '%s' to check role: %w", actorOrAlias, err)
	}
	roleLower := strings.ToLower(strings.TrimSpace(role))
	for _, r := range idInfo.Roles {
		if r == roleLower {
			return true, nil
		}
	}
	return false, nil
}

// RequireRole fails with ErrUnauthorized unless the caller holds the role.
// The administrator gets no bypass here: lifecycle transitions are open to
// role members only.
func (im *IdentityManager) RequireRole(requiredRole string) error {
	callerID, err := im.GetCallerID()
	if err != nil {
		return fmt.Errorf("failed to get caller ID for RequireRole: %w", err)
	}
	has, err := im.HasRole(callerID, requiredRole)
	if err != nil {
		return fmt.Errorf("error checking role '%s' for caller '%s': %w", requiredRole, callerID, err)
	}
	if !has {
		return fmt.Errorf("%w: actor '%s' does not have required role '%s'", ErrUnauthorized, callerID, requiredRole)
	}
	idLogger.Debugf("Role check passed for role '%s' for actor '%s'", requiredRole, callerID)
	return nil
}

// --- Administrator capability ---

// Administrator returns the ActorID currently holding the administrator
// capability, or empty if the system has not been bootstrapped.
func (im *IdentityManager) Administrator() (string, error) {
	adminBytes, err := im.Ctx.GetStub().GetState(administratorKey)
	if err != nil {
		return "", fmt.Errorf("ledger error reading administrator key: %w", err)
	}
	return string(adminBytes), nil
}

// Bootstrapped reports whether an administrator has been established.
func (im *IdentityManager) Bootstrapped() (bool, error) {
	admin, err := im.Administrator()
	if err != nil {
		return false, err
	}
	return admin != "", nil
}

// IsAdministrator reports whether the given actor holds the administrator
// capability.
func (im *IdentityManager) IsAdministrator(actorOrAlias string) (bool, error) {
	actorID, err := im.ResolveActor(actorOrAlias)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			// The bootstrap administrator may act before registering itself.
			actorID = strings.TrimSpace(actorOrAlias)
		} else {
			return false, err
		}
	}
	admin, err := im.Administrator()
	if err != nil {
		return false, err
	}
	return admin != "" && admin == actorID, nil
}

// RequireAdministrator fails with ErrUnauthorized unless actorID holds the
// administrator capability.
func (im *IdentityManager) RequireAdministrator(actorID string) error {
	isAdmin, err := im.IsAdministrator(actorID)
	if err != nil {
		return fmt.Errorf("failed to check administrator status for '%s': %w", actorID, err)
	}
	if !isAdmin {
		return fmt.Errorf("%w: actor '%s' is not the administrator", ErrUnauthorized, actorID)
	}
	return nil
}

// SetAdministrator writes the administrator key. Used by bootstrap and by
// TransferAdministrator; callers perform their own authorization.
func (im *IdentityManager) SetAdministrator(actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return errors.New("administrator actorID cannot be empty")
	}
	if err := im.Ctx.GetStub().PutState(administratorKey, []byte(actorID)); err != nil {
		return fmt.Errorf("failed to save administrator key: %w", err)
	}
	return nil
}

// TransferAdministrator reassigns the administrator capability. Only the
// current administrator may invoke it; the target must be a registered,
// non-empty actor. The reassignment is a single-key write, so it is atomic.
func (im *IdentityManager) TransferAdministrator(newActorOrAlias string) (string, error) {
	callerID, err := im.GetCallerID()
	if err != nil {
		return "", fmt.Errorf("failed to get caller ID for TransferAdministrator: %w", err)
	}
	if err := im.RequireAdministrator(callerID); err != nil {
		return "", err
	}

	if strings.TrimSpace(newActorOrAlias) == "" {
		return "", errors.New("new administrator cannot be the empty identity")
	}
	newAdminID, err := im.ResolveActor(newActorOrAlias)
	if err != nil {
		return "", fmt.Errorf("failed to resolve new administrator '%s': %w", newActorOrAlias, err)
	}
	if _, err := im.getIdentityInfoByActorID(newAdminID); err != nil {
		return "", fmt.Errorf("new administrator '%s' must be registered: %w", newActorOrAlias, err)
	}

	if err := im.SetAdministrator(newAdminID); err != nil {
		return "", err
	}
	idLogger.Infof("Administrator capability transferred from '%s' to '%s'", callerID, newAdminID)
	return newAdminID, nil
}

// GetActorsByRole returns the aliases of every registered actor holding the
// given role. Public query.
func (im *IdentityManager) GetActorsByRole(role string) ([]string, error) {
	roleLower := strings.ToLower(strings.TrimSpace(role))
	if roleLower == "" {
		return nil, errors.New("role cannot be empty")
	}
	if !ValidRoles[roleLower] {
		return nil, fmt.Errorf("invalid role '%s'. Valid roles are: %v", role, im.getListOfValidRoles())
	}

	resultsIterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(identityObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get identities iterator: %w", err)
	}
	defer resultsIterator.Close()

	aliases := []string{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			idLogger.Warningf("GetActorsByRole: failed to get next identity from iterator: %v. Skipping.", iterErr)
			continue
		}
		var idInfo model.IdentityInfo
		if err := json.Unmarshal(queryResponse.Value, &idInfo); err != nil {
			idLogger.Warningf("GetActorsByRole: failed to unmarshal identity for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		for _, r := range idInfo.Roles {
			if r == roleLower {
				aliases = append(aliases, idInfo.Alias)
				break
			}
		}
	}
	return aliases, nil
}
