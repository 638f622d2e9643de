package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/application"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

func TestCreateTaskAssignsOnlyWorkers(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	workerA := f.seedAccount("worker-a", domain.RoleWorker)
	workerB := f.seedAccount("worker-b", domain.RoleWorker)
	f.seedAccount("boss", domain.RoleManager)
	f.seedAccount("root", domain.RoleAdmin)

	res, err := f.service.CreateTask(ctx, adminCaller(), application.CreateTaskRequest{Title: "ship release"})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}
	if res.Status != "assigned" {
		t.Fatalf("expected assigned status, got %q", res.Status)
	}
	if res.AssignedTo != workerA.String() && res.AssignedTo != workerB.String() {
		t.Fatalf("task assigned to non-worker %q", res.AssignedTo)
	}

	events := f.tasks.eventTypes()
	if len(events) != 2 || events[0] != "task_created" || events[1] != "task_assigned" {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestCreateTaskWithoutWorkersStaysUnassigned(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.seedAccount("boss", domain.RoleManager)

	res, err := f.service.CreateTask(ctx, adminCaller(), application.CreateTaskRequest{Title: "triage inbox"})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}
	if res.Status != "created" || res.AssignedTo != "" {
		t.Fatalf("expected unassigned task, got %+v", res)
	}
	if events := f.tasks.eventTypes(); len(events) != 1 || events[0] != "task_created" {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestCreateTaskRejectsBadTitle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.CreateTask(ctx, adminCaller(), application.CreateTaskRequest{Title: "   "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank title, got %v", err)
	}
}

func TestListTasksVisibility(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	workerID := f.seedAccount("worker-a", domain.RoleWorker)
	otherID := f.seedAccount("worker-b", domain.RoleWorker)
	f.seedTask("mine", &workerID, domain.TaskStatusAssigned)
	f.seedTask("theirs", &otherID, domain.TaskStatusAssigned)
	f.seedTask("nobody's", nil, domain.TaskStatusCreated)

	mine, err := f.service.ListTasks(ctx, workerCaller(workerID))
	if err != nil {
		t.Fatalf("list as worker failed: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "mine" {
		t.Fatalf("worker should only see own tasks, got %+v", mine)
	}

	all, err := f.service.ListTasks(ctx, adminCaller())
	if err != nil {
		t.Fatalf("list as admin failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin should see all tasks, got %d", len(all))
	}
}

func TestCompleteTaskAssigneeOnly(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	workerID := f.seedAccount("worker-a", domain.RoleWorker)
	taskID := f.seedTask("deploy", &workerID, domain.TaskStatusAssigned)

	if _, err := f.service.CompleteTask(ctx, adminCaller(), taskID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for non-assignee, got %v", err)
	}

	res, err := f.service.CompleteTask(ctx, workerCaller(workerID), taskID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if res.Status != "completed" {
		t.Fatalf("expected completed status, got %q", res.Status)
	}
	if events := f.tasks.eventTypes(); len(events) != 1 || events[0] != "task_completed" {
		t.Fatalf("unexpected events: %v", events)
	}

	if _, err := f.service.CompleteTask(ctx, workerCaller(workerID), taskID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for double completion, got %v", err)
	}
	if _, err := f.service.CompleteTask(ctx, workerCaller(workerID), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown task, got %v", err)
	}

	// A non-assignee stays forbidden once the task is completed; the
	// conflict is for the assignee alone, so completion state never leaks.
	if _, err := f.service.CompleteTask(ctx, adminCaller(), taskID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for non-assignee on completed task, got %v", err)
	}
}

func TestCompleteTaskUnassignedIsForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	workerID := f.seedAccount("worker-a", domain.RoleWorker)
	taskID := f.seedTask("orphan", nil, domain.TaskStatusCreated)

	if _, err := f.service.CompleteTask(ctx, workerCaller(workerID), taskID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for unassigned task, got %v", err)
	}
}

func TestShuffleTasksRoleGateAndReassignment(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	workerID := f.seedAccount("worker-a", domain.RoleWorker)

	if _, err := f.service.ShuffleTasks(ctx, workerCaller(workerID)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for worker shuffle, got %v", err)
	}
	// Managers run the board day to day but may not shuffle it wholesale.
	if _, err := f.service.ShuffleTasks(ctx, managerCaller()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for manager shuffle, got %v", err)
	}

	f.seedTask("open-1", nil, domain.TaskStatusCreated)
	f.seedTask("open-2", &workerID, domain.TaskStatusAssigned)
	doneID := f.seedTask("done", &workerID, domain.TaskStatusCompleted)

	res, err := f.service.ShuffleTasks(ctx, adminCaller())
	if err != nil {
		t.Fatalf("shuffle failed: %v", err)
	}
	if res.ReassignedCount != 2 {
		t.Fatalf("expected 2 reassigned tasks, got %d", res.ReassignedCount)
	}
	for _, task := range f.tasks.snapshot() {
		if task.PublicID == doneID {
			if task.Status != domain.TaskStatusCompleted {
				t.Fatalf("shuffle must not touch completed tasks")
			}
			continue
		}
		if task.AssignedTo == nil || *task.AssignedTo != workerID {
			t.Fatalf("task %q not assigned to a worker after shuffle", task.Title)
		}
		if task.Status != domain.TaskStatusAssigned {
			t.Fatalf("expected assigned status after shuffle, got %q", task.Status)
		}
	}
}

func TestShuffleTasksWithoutWorkersConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	f.seedTask("open", nil, domain.TaskStatusCreated)

	if _, err := f.service.ShuffleTasks(ctx, adminCaller()); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict with no workers, got %v", err)
	}
}

func TestAuthenticateCacheMissVerifiesAndCaches(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	f.verifier.identities["token-1"] = domain.Identity{
		AccountID: accountID,
		Username:  "alice",
		Role:      domain.RoleWorker,
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}

	identity, err := f.service.Authenticate(ctx, "token-1")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if identity.AccountID != accountID {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if f.verifier.calls() != 1 {
		t.Fatalf("expected one verify call, got %d", f.verifier.calls())
	}

	// Verification refreshes the projection, covering projector lag.
	if _, err := f.projections.GetByPublicID(ctx, accountID); err != nil {
		t.Fatalf("expected projection after authenticate: %v", err)
	}

	if _, err := f.service.Authenticate(ctx, "token-1"); err != nil {
		t.Fatalf("cached authenticate failed: %v", err)
	}
	if f.verifier.calls() != 1 {
		t.Fatalf("expected cache hit on second authenticate, got %d verify calls", f.verifier.calls())
	}
}

func TestAuthenticateEvictsExpiredCacheEntry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	accountID := uuid.New()
	stale := domain.Identity{
		AccountID: accountID,
		Username:  "alice",
		Role:      domain.RoleWorker,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := f.cache.Set(ctx, "token-1", stale, time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	fresh := stale
	fresh.ExpiresAt = time.Now().UTC().Add(30 * time.Minute)
	f.verifier.identities["token-1"] = fresh

	identity, err := f.service.Authenticate(ctx, "token-1")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if !identity.ExpiresAt.Equal(fresh.ExpiresAt) {
		t.Fatalf("expected fresh identity after eviction, got %+v", identity)
	}
	if f.verifier.calls() != 1 {
		t.Fatalf("expected re-verification of expired entry, got %d calls", f.verifier.calls())
	}
}

func TestAuthenticateSurvivesDegradedCacheAndProjection(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	var logBuf bytes.Buffer
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			EventDedupTTL:       time.Hour,
			IdentityCacheMaxTTL: time.Hour,
		},
		Logger:     slog.New(slog.NewJSONHandler(&logBuf, nil)),
		Accounts:   f.projections,
		Tasks:      f.tasks,
		EventDedup: f.dedup,
		Cache:      f.cache,
		Verifier:   f.verifier,
	})

	accountID := uuid.New()
	f.verifier.identities["token-1"] = domain.Identity{
		AccountID: accountID,
		Username:  "alice",
		Role:      domain.RoleWorker,
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}
	f.cache.getErr = errors.New("redis gone")
	f.cache.setErr = errors.New("redis still gone")
	f.projections.upsertErr = errors.New("db gone")

	identity, err := svc.Authenticate(ctx, "token-1")
	if err != nil {
		t.Fatalf("authenticate should survive degraded sidecars: %v", err)
	}
	if identity.AccountID != accountID {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	logged := logBuf.String()
	for _, want := range []string{
		"identity cache read failed",
		"projection refresh after verification failed",
		"identity cache write failed",
	} {
		if !strings.Contains(logged, want) {
			t.Fatalf("expected %q in degraded-path logs, got: %s", want, logged)
		}
	}

	// A failed eviction of an expired entry is logged the same way.
	f.cache.getErr = nil
	f.cache.delErr = errors.New("redis read-only")
	stale := identity
	stale.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.cache.items["token-1"] = stale

	if _, err := svc.Authenticate(ctx, "token-1"); err != nil {
		t.Fatalf("authenticate should survive failed eviction: %v", err)
	}
	if !strings.Contains(logBuf.String(), "expired identity cache entry not evicted") {
		t.Fatalf("expected eviction failure in logs, got: %s", logBuf.String())
	}
}

func TestAuthenticateRejectsEmptyAndBadTokens(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if _, err := f.service.Authenticate(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
	if _, err := f.service.Authenticate(ctx, "unknown"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown token, got %v", err)
	}
}

func adminCaller() domain.Identity {
	return domain.Identity{AccountID: uuid.New(), Username: "root", Role: domain.RoleAdmin}
}

func managerCaller() domain.Identity {
	return domain.Identity{AccountID: uuid.New(), Username: "boss", Role: domain.RoleManager}
}

func workerCaller(accountID uuid.UUID) domain.Identity {
	return domain.Identity{AccountID: accountID, Username: "worker", Role: domain.RoleWorker}
}

type fixture struct {
	service     *application.Service
	projections *fakeProjections
	tasks       *fakeTasks
	dedup       *fakeDedup
	cache       *fakeCache
	verifier    *fakeVerifier
}

func newFixture() *fixture {
	projections := &fakeProjections{items: map[uuid.UUID]domain.AccountProjection{}}
	tasks := &fakeTasks{items: map[uuid.UUID]domain.Task{}}
	dedup := &fakeDedup{seen: map[string]time.Time{}}
	cache := &fakeCache{items: map[string]domain.Identity{}}
	verifier := &fakeVerifier{identities: map[string]domain.Identity{}}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			EventDedupTTL:       time.Hour,
			IdentityCacheMaxTTL: time.Hour,
		},
		Accounts:   projections,
		Tasks:      tasks,
		EventDedup: dedup,
		Cache:      cache,
		Verifier:   verifier,
	})
	return &fixture{
		service:     svc,
		projections: projections,
		tasks:       tasks,
		dedup:       dedup,
		cache:       cache,
		verifier:    verifier,
	}
}

func (f *fixture) seedAccount(username string, role domain.Role) uuid.UUID {
	id := uuid.New()
	_ = f.projections.Upsert(context.Background(), ports.UpsertAccountParams{
		PublicID:  id,
		Username:  username,
		Role:      role,
		Timestamp: time.Now().UTC(),
	})
	return id
}

func (f *fixture) seedTask(title string, assignedTo *uuid.UUID, status domain.TaskStatus) uuid.UUID {
	f.tasks.mu.Lock()
	defer f.tasks.mu.Unlock()
	id := uuid.New()
	now := time.Now().UTC()
	f.tasks.items[id] = domain.Task{
		PublicID:   id,
		Title:      title,
		AssignedTo: assignedTo,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.tasks.order = append(f.tasks.order, id)
	return id
}

type fakeProjections struct {
	mu        sync.Mutex
	items     map[uuid.UUID]domain.AccountProjection
	order     []uuid.UUID
	upsertErr error
}

func (f *fakeProjections) Upsert(_ context.Context, params ports.UpsertAccountParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if _, ok := f.items[params.PublicID]; !ok {
		f.order = append(f.order, params.PublicID)
	}
	existing, ok := f.items[params.PublicID]
	created := params.Timestamp
	if ok {
		created = existing.CreatedAt
	}
	f.items[params.PublicID] = domain.AccountProjection{
		PublicID:  params.PublicID,
		Username:  params.Username,
		Role:      params.Role,
		CreatedAt: created,
		UpdatedAt: params.Timestamp,
	}
	return nil
}

func (f *fakeProjections) CreateIfAbsent(_ context.Context, params ports.UpsertAccountParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[params.PublicID]; ok {
		return nil
	}
	f.order = append(f.order, params.PublicID)
	f.items[params.PublicID] = domain.AccountProjection{
		PublicID:  params.PublicID,
		Username:  params.Username,
		Role:      params.Role,
		CreatedAt: params.Timestamp,
		UpdatedAt: params.Timestamp,
	}
	return nil
}

func (f *fakeProjections) GetByPublicID(_ context.Context, publicID uuid.UUID) (domain.AccountProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.items[publicID]
	if !ok {
		return domain.AccountProjection{}, domain.ErrNotFound
	}
	return account, nil
}

func (f *fakeProjections) ListByRole(_ context.Context, role domain.Role) ([]domain.AccountProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AccountProjection, 0)
	for _, id := range f.order {
		if account, ok := f.items[id]; ok && account.Role == role {
			out = append(out, account)
		}
	}
	return out, nil
}

func (f *fakeProjections) Delete(_ context.Context, publicID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[publicID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, publicID)
	return nil
}

type fakeTasks struct {
	mu     sync.Mutex
	items  map[uuid.UUID]domain.Task
	order  []uuid.UUID
	events []ports.OutboxEvent
}

func (f *fakeTasks) CreateWithOutboxTx(_ context.Context, params ports.CreateTaskParams, outboxEvents []ports.OutboxEvent) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := domain.Task{
		PublicID:    params.PublicID,
		Title:       params.Title,
		Description: params.Description,
		AssignedTo:  params.AssignedTo,
		Status:      params.Status,
		CreatedAt:   params.CreatedAtUTC,
		UpdatedAt:   params.CreatedAtUTC,
	}
	f.items[task.PublicID] = task
	f.order = append(f.order, task.PublicID)
	f.events = append(f.events, outboxEvents...)
	return task, nil
}

func (f *fakeTasks) GetByPublicID(_ context.Context, publicID uuid.UUID) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.items[publicID]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return task, nil
}

func (f *fakeTasks) ListAll(_ context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out, nil
}

func (f *fakeTasks) ListByAssignee(_ context.Context, accountID uuid.UUID) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0)
	for _, id := range f.order {
		task := f.items[id]
		if task.AssignedTo != nil && *task.AssignedTo == accountID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTasks) ListOpen(_ context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0)
	for _, id := range f.order {
		task := f.items[id]
		if task.Status != domain.TaskStatusCompleted {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTasks) ReassignWithOutboxTx(_ context.Context, params ports.ReassignTaskParams, outboxEvent ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.items[params.PublicID]
	if !ok {
		return domain.ErrNotFound
	}
	assignee := params.AssignedTo
	task.AssignedTo = &assignee
	task.Status = domain.TaskStatusAssigned
	task.UpdatedAt = params.UpdatedAtUTC
	f.items[params.PublicID] = task
	f.events = append(f.events, outboxEvent)
	return nil
}

func (f *fakeTasks) CompleteWithOutboxTx(_ context.Context, publicID uuid.UUID, completedAt time.Time, outboxEvent ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.items[publicID]
	if !ok {
		return domain.ErrNotFound
	}
	task.Status = domain.TaskStatusCompleted
	task.UpdatedAt = completedAt
	f.items[publicID] = task
	f.events = append(f.events, outboxEvent)
	return nil
}

func (f *fakeTasks) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.EventType)
	}
	return out
}

func (f *fakeTasks) snapshot() []domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Task, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func (f *fakeDedup) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expiresAt, ok := f.seen[eventID]
	return ok && expiresAt.After(now), nil
}

func (f *fakeDedup) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[eventID] = expiresAt
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	items  map[string]domain.Identity
	getErr error
	setErr error
	delErr error
}

func (f *fakeCache) Get(_ context.Context, token string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	identity, ok := f.items[token]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (f *fakeCache) Set(_ context.Context, token string, identity domain.Identity, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.items[token] = identity
	return nil
}

func (f *fakeCache) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.items, token)
	return nil
}

type fakeVerifier struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
	callCount  int
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	identity, ok := f.identities[token]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return identity, nil
}

func (f *fakeVerifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
