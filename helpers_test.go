package havenwatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memProvider is an in-memory UserProvider for engine tests. It counts
// lookups so tests can assert which code paths touched the store.
type memProvider struct {
	mu           sync.Mutex
	byID         map[string]UserRecord
	byEmail      map[string]string
	nextID       int
	emailLookups int
	createCalls  int
}

func newMemProvider() *memProvider {
	return &memProvider{
		byID:    map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (p *memProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emailLookups++

	id, ok := p.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *memProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return record, nil
}

func (p *memProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++

	key := strings.ToLower(input.Email)
	if _, exists := p.byEmail[key]; exists {
		return UserRecord{}, ErrEmailExists
	}

	p.nextID++
	record := UserRecord{
		UserID:       fmt.Sprintf("user-%03d", p.nextID),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Status:       input.Status,
		Metadata:     input.Metadata,
		CreatedAt:    time.Now().Unix(),
	}
	p.byID[record.UserID] = record
	p.byEmail[key] = record.UserID
	return record, nil
}

func (p *memProvider) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	record.PasswordHash = newHash
	p.byID[userID] = record
	return nil
}

func (p *memProvider) UpdateMetadata(_ context.Context, userID string, metadata map[string]string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	record.Metadata = metadata
	p.byID[userID] = record
	return record, nil
}

func (p *memProvider) UpdateStatus(_ context.Context, userID string, status AccountStatus) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	record.Status = status
	p.byID[userID] = record
	return record, nil
}

func (p *memProvider) userCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

func (p *memProvider) lookupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emailLookups
}

// recordSink collects emitted events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]EventKind, len(s.events))
	for i, event := range s.events {
		kinds[i] = event.Kind
	}
	return kinds
}

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldown = time.Minute
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *memProvider, *recordSink) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	provider := newMemProvider()
	sink := &recordSink{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithUserProvider(provider).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	return engine, provider, sink
}

func mustSignUp(t *testing.T, engine *Engine, email, password string) *SignUpResult {
	t.Helper()

	result, err := engine.SignUp(context.Background(), SignUpRequest{Email: email, Password: password})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return result
}
