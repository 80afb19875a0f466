package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"coffeetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Payment Settlement ---
//
// Settlement is an in-ledger balance transfer executed inside the buy
// transition. Funds enter the system through FundAccount; the buy transition
// debits the buyer and credits the originating farmer in the same atomic
// unit as the custody change.

func (s *SupplychainContract) createAccountCompositeKey(ctx contractapi.TransactionContextInterface, actorID string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(accountObjectType, []string{actorID})
}

// getAccount loads an actor's settlement account. Actors without prior
// activity have a zero-balance account.
func (s *SupplychainContract) getAccount(ctx contractapi.TransactionContextInterface, actorID string) (*model.Account, error) {
	accountKey, err := s.createAccountCompositeKey(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account key for '%s': %w", actorID, err)
	}
	accountBytes, err := ctx.GetStub().GetState(accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read account for '%s': %w", actorID, err)
	}
	if accountBytes == nil {
		return &model.Account{ObjectType: accountObjectType, ActorID: actorID}, nil
	}
	var account model.Account
	if err := json.Unmarshal(accountBytes, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account for '%s': %w", actorID, err)
	}
	return &account, nil
}

func (s *SupplychainContract) putAccount(ctx contractapi.TransactionContextInterface, account *model.Account) error {
	accountKey, err := s.createAccountCompositeKey(ctx, account.ActorID)
	if err != nil {
		return fmt.Errorf("failed to create account key for '%s': %w", account.ActorID, err)
	}
	accountBytes, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account for '%s': %w", account.ActorID, err)
	}
	if err := ctx.GetStub().PutState(accountKey, accountBytes); err != nil {
		return fmt.Errorf("failed to save account for '%s': %w", account.ActorID, err)
	}
	return nil
}

// settle moves exactly amount from payer to payee. The caller has already
// verified the payer can cover it; a shortfall here still fails cleanly
// with ErrInsufficientFunds and nothing committed.
func (s *SupplychainContract) settle(ctx contractapi.TransactionContextInterface, payerID, payeeID string, amount uint64) error {
	payer, err := s.getAccount(ctx, payerID)
	if err != nil {
		return err
	}
	if payer.Balance < amount {
		return fmt.Errorf("%w: payer '%s' balance %d cannot cover %d", ErrInsufficientFunds, payerID, payer.Balance, amount)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}

	// Paying oneself moves nothing. Loading the account twice here would
	// let the credit write clobber the debit write.
	if payerID == payeeID {
		payer.LastUpdatedAt = now
		return s.putAccount(ctx, payer)
	}

	payee, err := s.getAccount(ctx, payeeID)
	if err != nil {
		return err
	}

	payer.Balance -= amount
	payer.LastUpdatedAt = now
	payee.Balance += amount
	payee.LastUpdatedAt = now

	if err := s.putAccount(ctx, payer); err != nil {
		return err
	}
	if err := s.putAccount(ctx, payee); err != nil {
		return err
	}
	logger.Debugf("Settled %d from '%s' to '%s'", amount, payerID, payeeID)
	return nil
}

// FundAccount credits the caller's own settlement account. This is the
// ledger-native analogue of attaching value to a call: actors fund their
// account up front and later transitions draw on it.
func (s *SupplychainContract) FundAccount(ctx contractapi.TransactionContextInterface, amount uint64) (uint64, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("FundAccount: failed to get actor info: %w", err)
	}
	if amount == 0 {
		return 0, errors.New("FundAccount: amount must be positive")
	}

	account, err := s.getAccount(ctx, actor.actorID)
	if err != nil {
		return 0, fmt.Errorf("FundAccount: %w", err)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("FundAccount: %w", err)
	}
	account.Balance += amount
	account.LastUpdatedAt = now
	if err := s.putAccount(ctx, account); err != nil {
		return 0, fmt.Errorf("FundAccount: %w", err)
	}
	logger.Infof("Actor '%s' funded account with %d (new balance %d)", actor.actorID, amount, account.Balance)
	return account.Balance, nil
}

// GetAccountBalance returns an actor's settlement balance. Restricted to the
// administrator and the account owner.
func (s *SupplychainContract) GetAccountBalance(ctx contractapi.TransactionContextInterface, actorOrAlias string) (uint64, error) {
	im := NewIdentityManager(ctx)
	callerID, err := im.GetCallerID()
	if err != nil {
		return 0, fmt.Errorf("GetAccountBalance: failed to get caller ID: %w", err)
	}
	targetID, err := im.ResolveActor(actorOrAlias)
	if err != nil {
		return 0, fmt.Errorf("GetAccountBalance: failed to resolve actor '%s': %w", actorOrAlias, err)
	}
	if callerID != targetID {
		isCallerAdmin, err := im.IsAdministrator(callerID)
		if err != nil {
			return 0, fmt.Errorf("GetAccountBalance: failed to check administrator status: %w", err)
		}
		if !isCallerAdmin {
			return 0, fmt.Errorf("%w: only the administrator or the account owner can read balances", ErrUnauthorized)
		}
	}

	account, err := s.getAccount(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("GetAccountBalance: %w", err)
	}
	return account.Balance, nil
}
