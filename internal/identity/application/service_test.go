package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/identity/application"
	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/identity/ports"
)

func TestSignupLoginVerify(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	signupRes, err := f.service.Signup(ctx, application.SignupRequest{
		Username: "alice",
		Password: "secret1234",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if signupRes.AccountID == "" {
		t.Fatalf("signup returned empty account id")
	}
	if signupRes.Role != "worker" {
		t.Fatalf("expected default worker role, got %q", signupRes.Role)
	}

	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Username: "alice",
		Password: "secret1234",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginRes.AccessToken == "" || loginRes.TokenType != "bearer" {
		t.Fatalf("unexpected login response: %+v", loginRes)
	}

	verifyRes, err := f.service.VerifyToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verifyRes.AccountID != signupRes.AccountID || verifyRes.Username != "alice" {
		t.Fatalf("verify returned wrong identity: %+v", verifyRes)
	}
	if !verifyRes.ExpiresAt.After(time.Now().UTC()) {
		t.Fatalf("verify returned past expiry: %v", verifyRes.ExpiresAt)
	}
}

func TestSignupDuplicateUsernameConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Signup(ctx, application.SignupRequest{Username: "bob", Password: "secret1234"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := f.service.Signup(ctx, application.SignupRequest{Username: "bob", Password: "other12345"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	cases := []application.SignupRequest{
		{Username: "", Password: "secret1234"},
		{Username: "carol", Password: "short1"},
		{Username: "carol", Password: "lettersonly"},
		{Username: "carol", Password: "12345678"},
		{Username: "carol", Password: "secret1234", Role: "superuser"},
	}
	for _, req := range cases {
		if _, err := f.service.Signup(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", req, err)
		}
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Signup(ctx, application.SignupRequest{Username: "dave", Password: "secret1234"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "nobody", Password: "secret1234"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "dave", Password: "wrongpass1"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}
}

func TestVerifyRejectsDeletedAccount(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	signupRes, err := f.service.Signup(ctx, application.SignupRequest{Username: "erin", Password: "secret1234"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, application.LoginRequest{Username: "erin", Password: "secret1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	accountID := uuid.MustParse(signupRes.AccountID)
	if err := f.service.DeleteAccount(ctx, accountID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := f.service.VerifyToken(ctx, loginRes.AccessToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for deleted account, got %v", err)
	}
	if err := f.service.DeleteAccount(ctx, accountID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for double delete, got %v", err)
	}
}

func TestUpdateAccountRoleChangeEmitsEvent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	signupRes, err := f.service.Signup(ctx, application.SignupRequest{Username: "frank", Password: "secret1234"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	accountID := uuid.MustParse(signupRes.AccountID)

	role := "manager"
	if _, err := f.service.UpdateAccount(ctx, accountID, application.UpdateAccountRequest{Role: &role}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	events := f.accounts.eventsOfType("account_updated")
	if len(events) != 1 {
		t.Fatalf("expected one account_updated event, got %d", len(events))
	}
	var envelope struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Payload   struct {
			AccountID string `json:"account_id"`
			Role      string `json:"role"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(events[0].Payload, &envelope); err != nil {
		t.Fatalf("unmarshal event payload: %v", err)
	}
	if envelope.EventID == "" || envelope.Payload.AccountID != signupRes.AccountID || envelope.Payload.Role != "manager" {
		t.Fatalf("unexpected event envelope: %+v", envelope)
	}

	// Same-role update is a no-op on the stream.
	if _, err := f.service.UpdateAccount(ctx, accountID, application.UpdateAccountRequest{Role: &role}); err != nil {
		t.Fatalf("repeat update failed: %v", err)
	}
	if got := len(f.accounts.eventsOfType("account_updated")); got != 1 {
		t.Fatalf("expected no extra event for same-role update, got %d", got)
	}
}

func TestUpdateAccountRequiresAField(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	signupRes, err := f.service.Signup(ctx, application.SignupRequest{Username: "gina", Password: "secret1234"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	accountID := uuid.MustParse(signupRes.AccountID)

	if _, err := f.service.UpdateAccount(ctx, accountID, application.UpdateAccountRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty update, got %v", err)
	}
}

func TestSignupEnqueuesCreatedEventAtomically(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Signup(ctx, application.SignupRequest{Username: "henry", Password: "secret1234", Role: "admin"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	events := f.accounts.eventsOfType("account_created")
	if len(events) != 1 {
		t.Fatalf("expected one account_created event, got %d", len(events))
	}
	if events[0].PartitionKey == "" {
		t.Fatalf("expected account id partition key")
	}

	// A failed signup must not leave an event behind.
	if _, err := f.service.Signup(ctx, application.SignupRequest{Username: "henry", Password: "secret1234"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := len(f.accounts.eventsOfType("account_created")); got != 1 {
		t.Fatalf("expected no event from failed signup, got %d", got)
	}
}

type fixture struct {
	service  *application.Service
	accounts *fakeAccounts
}

func newFixture() *fixture {
	accounts := &fakeAccounts{
		byID:       map[uuid.UUID]domain.Account{},
		byUsername: map[string]uuid.UUID{},
	}
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			TokenTTL: time.Hour,
		},
		Accounts: accounts,
		Hasher:   &fakeHasher{},
		Signer:   &fakeSigner{tokens: map[string]ports.AuthClaims{}},
	})
	return &fixture{service: svc, accounts: accounts}
}

type fakeAccounts struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]domain.Account
	byUsername map[string]uuid.UUID
	events     []ports.OutboxEvent
}

func (f *fakeAccounts) CreateWithOutboxTx(_ context.Context, params ports.CreateAccountTxParams, outboxEvent ports.OutboxEvent) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byUsername[params.Username]; exists {
		return domain.Account{}, domain.ErrConflict
	}
	account := domain.Account{
		PublicID:       params.PublicID,
		Username:       params.Username,
		CredentialHash: params.CredentialHash,
		Role:           params.Role,
		Active:         true,
		CreatedAt:      params.CreatedAtUTC,
		UpdatedAt:      params.CreatedAtUTC,
	}
	f.byID[account.PublicID] = account
	f.byUsername[account.Username] = account.PublicID
	f.events = append(f.events, outboxEvent)
	return account, nil
}

func (f *fakeAccounts) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byUsername[username]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeAccounts) GetByPublicID(_ context.Context, publicID uuid.UUID) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[publicID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (f *fakeAccounts) UpdateWithOutboxTx(_ context.Context, params ports.UpdateAccountTxParams, outboxEvent *ports.OutboxEvent) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[params.PublicID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if params.CredentialHash != nil {
		account.CredentialHash = *params.CredentialHash
	}
	if params.Role != nil {
		account.Role = *params.Role
	}
	account.UpdatedAt = params.UpdatedAtUTC
	f.byID[params.PublicID] = account
	if outboxEvent != nil {
		f.events = append(f.events, *outboxEvent)
	}
	return account, nil
}

func (f *fakeAccounts) DeactivateWithOutboxTx(_ context.Context, publicID uuid.UUID, deactivatedAt time.Time, outboxEvent ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[publicID]
	if !ok {
		return domain.ErrNotFound
	}
	account.Active = false
	account.UpdatedAt = deactivatedAt
	f.byID[publicID] = account
	f.events = append(f.events, outboxEvent)
	return nil
}

func (f *fakeAccounts) eventsOfType(eventType string) []ports.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.OutboxEvent, 0, len(f.events))
	for _, event := range f.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

type fakeSigner struct {
	mu     sync.Mutex
	tokens map[string]ports.AuthClaims
	seq    int
}

func (f *fakeSigner) Sign(claims ports.AuthClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := fmt.Sprintf("token-%d", f.seq)
	f.tokens[token] = claims
	return token, nil
}

func (f *fakeSigner) ParseAndValidate(raw string) (ports.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[raw]
	if !ok {
		return ports.AuthClaims{}, errors.New("unknown token")
	}
	return claims, nil
}
