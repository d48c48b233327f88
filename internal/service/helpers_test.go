package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/events"
	"github.com/spec-kit/profile-service/internal/ratelimit"
	"github.com/spec-kit/profile-service/internal/repository"
	"github.com/spec-kit/profile-service/internal/service"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:              "service-test-secret",
			JWTIssuer:              "service-test",
			AccessTokenTTLMinutes:  60,
			RefreshTokenTTLMinutes: 120,
			PasswordAlgorithm:      config.PasswordBcrypt,
			BcryptCost:             bcrypt.MinCost,
			MinPasswordLength:      8,
		},
	}
}

type fixture struct {
	repo       *repository.MemoryUserRepository
	auth       *service.AuthService
	users      *service.UserService
	throttle   *fakeThrottle
	ipThrottle *fakeThrottle
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()
	repo := repository.NewMemoryUserRepository()
	throttle := newFakeThrottle(3)
	ipThrottle := newFakeThrottle(6)
	dispatcher := &recordingDispatcher{}

	authSvc, err := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:   repo,
		Throttle:   throttle,
		IPThrottle: ipThrottle,
		Dispatcher: dispatcher,
	})
	require.NoError(t, err)

	userSvc := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   repo,
		Hasher:     authSvc.Hasher(),
		Dispatcher: dispatcher,
	})
	return &fixture{repo: repo, auth: authSvc, users: userSvc, throttle: throttle, ipThrottle: ipThrottle, dispatcher: dispatcher}
}

type fakeThrottle struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	checkErr error
}

func newFakeThrottle(max int) *fakeThrottle {
	return &fakeThrottle{max: max, failures: make(map[string]int)}
}

func (f *fakeThrottle) Check(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return f.checkErr
	}
	if f.failures[key] >= f.max {
		return ratelimit.ErrRateLimited
	}
	return nil
}

func (f *fakeThrottle) Fail(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key]++
	return nil
}

func (f *fakeThrottle) Reset(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, key)
	return nil
}

func (f *fakeThrottle) Cooldown() time.Duration { return time.Minute }

func (f *fakeThrottle) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[key]
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}
