package goAccess_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
)

func failLogin(t *testing.T, env *testEnv, email string) error {
	t.Helper()
	_, err := env.engine.Authenticate(context.Background(), goAccess.AuthenticateRequest{
		Kind: goAccess.KindUser, Email: email, Password: "wrong-password-x",
	})
	return err
}

func TestLockoutAfterThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "lock@example.com")

	for i := 1; i <= 4; i++ {
		locked, err := env.engine.RecordFailedLogin(ctx, user.Ref())
		if err != nil {
			t.Fatalf("RecordFailedLogin %d: %v", i, err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
	}

	locked, err := env.engine.RecordFailedLogin(ctx, user.Ref())
	if err != nil {
		t.Fatalf("RecordFailedLogin 5: %v", err)
	}
	if !locked {
		t.Fatal("expected lock after 5th failure")
	}

	acct, err := env.engine.GetAccount(ctx, user.Ref())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	want := env.clock.Now().Add(30 * time.Minute)
	if acct.LockedUntil == nil || !acct.LockedUntil.Equal(want) {
		t.Fatalf("LockedUntil = %v, want %v", acct.LockedUntil, want)
	}
	if acct.LoginAttempts != 5 {
		t.Fatalf("LoginAttempts = %d", acct.LoginAttempts)
	}
	if v := env.engine.MetricsSnapshot().Counters[goAccess.MetricAccountLocked]; v != 1 {
		t.Fatalf("account locked counter = %d", v)
	}
}

func TestLockedAccountRejectsCorrectPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "locked@example.com")

	for i := 0; i < 5; i++ {
		if err := failLogin(t, env, "locked@example.com"); !errors.Is(err, goAccess.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := env.engine.Authenticate(context.Background(), goAccess.AuthenticateRequest{
		Kind: goAccess.KindUser, Email: "locked@example.com", Password: testPassword,
	})
	if !errors.Is(err, goAccess.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLockExpiresLazily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "lazy@example.com")

	for i := 0; i < 5; i++ {
		if _, err := env.engine.RecordFailedLogin(ctx, user.Ref()); err != nil {
			t.Fatalf("RecordFailedLogin: %v", err)
		}
	}
	before, _ := env.engine.GetAccount(ctx, user.Ref())

	env.clock.Advance(30*time.Minute + time.Second)

	locked, err := env.engine.IsLocked(ctx, user.Ref())
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Fatal("expected expired lock to read as unlocked")
	}

	after, _ := env.engine.GetAccount(ctx, user.Ref())
	if after.Version != before.Version || after.LockedUntil == nil {
		t.Fatal("expiry must not write the record")
	}

	if _, err := env.engine.Authenticate(ctx, goAccess.AuthenticateRequest{
		Kind: goAccess.KindUser, Email: "lazy@example.com", Password: testPassword,
	}); err != nil {
		t.Fatalf("Authenticate after expiry: %v", err)
	}
}

func TestLockExactlyAtExpiryIsUnlocked(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now
	acct := goAccess.Account{LockedUntil: &until}
	if acct.IsLocked(now) {
		t.Fatal("LockedUntil == now must read as unlocked")
	}
	if !acct.IsLocked(now.Add(-time.Nanosecond)) {
		t.Fatal("LockedUntil after now must read as locked")
	}
}

func TestFailureWhileLockedExtendsLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "extend@example.com")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.RecordFailedLogin(ctx, user.Ref())
	}
	env.clock.Advance(10 * time.Minute)
	if _, err := env.engine.RecordFailedLogin(ctx, user.Ref()); err != nil {
		t.Fatalf("RecordFailedLogin: %v", err)
	}

	acct, _ := env.engine.GetAccount(ctx, user.Ref())
	want := env.clock.Now().Add(30 * time.Minute)
	if acct.LockedUntil == nil || !acct.LockedUntil.Equal(want) {
		t.Fatalf("LockedUntil = %v, want %v", acct.LockedUntil, want)
	}
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "reset@example.com")

	for i := 0; i < 3; i++ {
		_ = failLogin(t, env, "reset@example.com")
	}
	got, err := env.engine.Authenticate(ctx, goAccess.AuthenticateRequest{
		Kind: goAccess.KindUser, Email: "reset@example.com", Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.LoginAttempts != 0 {
		t.Fatalf("LoginAttempts = %d", got.LoginAttempts)
	}

	acct, _ := env.engine.GetAccount(ctx, user.Ref())
	if acct.LoginAttempts != 0 {
		t.Fatalf("stored LoginAttempts = %d", acct.LoginAttempts)
	}
}

func TestResetLoginAttemptsUnlocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "unlock@example.com")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.RecordFailedLogin(ctx, user.Ref())
	}
	if err := env.engine.ResetLoginAttempts(ctx, user.Ref()); err != nil {
		t.Fatalf("ResetLoginAttempts: %v", err)
	}

	acct, _ := env.engine.GetAccount(ctx, user.Ref())
	if acct.LoginAttempts != 0 || acct.LockedUntil != nil {
		t.Fatalf("after reset: attempts=%d lockedUntil=%v", acct.LoginAttempts, acct.LockedUntil)
	}

	// already clear: no write
	if err := env.engine.ResetLoginAttempts(ctx, user.Ref()); err != nil {
		t.Fatalf("second ResetLoginAttempts: %v", err)
	}
	again, _ := env.engine.GetAccount(ctx, user.Ref())
	if again.Version != acct.Version {
		t.Fatalf("no-op reset advanced version %d -> %d", acct.Version, again.Version)
	}
}

func TestLockoutIsPerAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "a@example.com")
	env.createUser(t, "b@example.com")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.RecordFailedLogin(ctx, a.Ref())
	}
	if _, err := env.engine.Authenticate(ctx, goAccess.AuthenticateRequest{
		Kind: goAccess.KindUser, Email: "b@example.com", Password: testPassword,
	}); err != nil {
		t.Fatalf("other account affected: %v", err)
	}
}
