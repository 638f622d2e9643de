package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/identity/ports"
)

// Signup creates an account and enqueues the account_created event in the same
// transaction, so the stream never announces an account that failed to commit.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (SignupResponse, error) {
	username, err := domain.ValidateUsername(req.Username)
	if err != nil {
		return SignupResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return SignupResponse{}, err
	}

	role := s.cfg.DefaultRole
	if req.Role != "" {
		role, err = domain.ParseRole(req.Role)
		if err != nil {
			return SignupResponse{}, err
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return SignupResponse{}, err
	}

	now := s.nowFn()
	pending := domain.Account{
		PublicID: uuid.New(),
		Username: username,
		Role:     role,
		Active:   true,
	}
	account, err := s.accounts.CreateWithOutboxTx(ctx, ports.CreateAccountTxParams{
		PublicID:       pending.PublicID,
		Username:       username,
		CredentialHash: hash,
		Role:           role,
		CreatedAtUTC:   now,
	}, s.buildAccountEvent(eventTypeAccountCreated, pending))
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return SignupResponse{}, fmt.Errorf("%w: username already taken", domain.ErrConflict)
		}
		return SignupResponse{}, err
	}

	return SignupResponse{
		AccountID: account.PublicID.String(),
		Username:  account.Username,
		Role:      string(account.Role),
	}, nil
}

// Login verifies credentials and issues a bearer token.
// Unknown username and wrong password return the same error on purpose.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	username, err := domain.ValidateUsername(req.Username)
	if err != nil {
		return LoginResponse{}, err
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResponse{}, domain.ErrUnauthorized
		}
		return LoginResponse{}, err
	}
	if !account.Active {
		return LoginResponse{}, domain.ErrUnauthorized
	}
	if err := s.hasher.Compare(account.CredentialHash, req.Password); err != nil {
		return LoginResponse{}, domain.ErrUnauthorized
	}

	now := s.nowFn()
	expiresAt := now.Add(s.cfg.TokenTTL)
	token, err := s.signer.Sign(ports.AuthClaims{
		AccountID: account.PublicID,
		Username:  account.Username,
		Role:      string(account.Role),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return LoginResponse{}, err
	}

	return LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// VerifyToken validates a bearer token against the signing key and the live
// account record. A deleted or deactivated account fails verification even if
// the token signature is still good.
func (s *Service) VerifyToken(ctx context.Context, raw string) (VerifyResponse, error) {
	claims, err := s.signer.ParseAndValidate(raw)
	if err != nil {
		return VerifyResponse{}, domain.ErrUnauthorized
	}

	account, err := s.accounts.GetByPublicID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return VerifyResponse{}, domain.ErrUnauthorized
		}
		return VerifyResponse{}, err
	}
	if !account.Active {
		return VerifyResponse{}, domain.ErrUnauthorized
	}

	return VerifyResponse{
		AccountID: account.PublicID.String(),
		Username:  account.Username,
		Role:      string(account.Role),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (AccountResponse, error) {
	account, err := s.accounts.GetByPublicID(ctx, accountID)
	if err != nil {
		return AccountResponse{}, err
	}
	return toAccountResponse(account), nil
}

// UpdateAccount changes the password and/or the role of an account.
// Only a role change is announced on the stream; credentials never leave
// this service in any form.
func (s *Service) UpdateAccount(ctx context.Context, accountID uuid.UUID, req UpdateAccountRequest) (AccountResponse, error) {
	if req.Password == nil && req.Role == nil {
		return AccountResponse{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByPublicID(ctx, accountID)
	if err != nil {
		return AccountResponse{}, err
	}

	params := ports.UpdateAccountTxParams{
		PublicID:     accountID,
		UpdatedAtUTC: s.nowFn(),
	}
	if req.Password != nil {
		if err := domain.ValidatePassword(*req.Password); err != nil {
			return AccountResponse{}, err
		}
		hash, hashErr := s.hasher.Hash(*req.Password)
		if hashErr != nil {
			return AccountResponse{}, hashErr
		}
		params.CredentialHash = &hash
	}

	var outboxEvent *ports.OutboxEvent
	if req.Role != nil {
		role, parseErr := domain.ParseRole(*req.Role)
		if parseErr != nil {
			return AccountResponse{}, parseErr
		}
		params.Role = &role
		if role != account.Role {
			next := account
			next.Role = role
			event := s.buildAccountEvent(eventTypeAccountUpdated, next)
			outboxEvent = &event
		}
	}

	updated, err := s.accounts.UpdateWithOutboxTx(ctx, params, outboxEvent)
	if err != nil {
		return AccountResponse{}, err
	}
	return toAccountResponse(updated), nil
}

// DeleteAccount deactivates the account and enqueues account_deleted in the
// same transaction. Downstream projections drop the account; tokens for it
// stop verifying immediately.
func (s *Service) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.GetByPublicID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Active {
		return fmt.Errorf("%w: account already deleted", domain.ErrConflict)
	}

	return s.accounts.DeactivateWithOutboxTx(ctx, accountID, s.nowFn(),
		s.buildAccountEvent(eventTypeAccountDeleted, account))
}

func toAccountResponse(account domain.Account) AccountResponse {
	return AccountResponse{
		AccountID: account.PublicID.String(),
		Username:  account.Username,
		Role:      string(account.Role),
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}
