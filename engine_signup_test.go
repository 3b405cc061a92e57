package havenwatch

import (
	"context"
	"errors"
	"testing"
)

func confirmationRequired(cfg *Config) {
	cfg.EmailConfirmation.Required = true
}

func TestSignUpWithConfirmationGate(t *testing.T) {
	engine, _, _ := newTestEngine(t, confirmationRequired)
	ctx := context.Background()

	result := mustSignUp(t, engine, "alice@example.com", "correct-horse")
	if !result.ConfirmationRequired {
		t.Fatal("expected confirmation to be required")
	}
	if result.Tokens != nil {
		t.Fatal("no tokens may be issued before confirmation")
	}
	if result.ConfirmationToken == "" {
		t.Fatal("expected a confirmation token")
	}

	// Pending accounts cannot sign in yet.
	if _, err := engine.SignIn(ctx, "alice@example.com", "correct-horse"); !errors.Is(err, ErrAccountUnconfirmed) {
		t.Fatalf("err = %v, want ErrAccountUnconfirmed", err)
	}

	user, err := engine.ConfirmEmail(ctx, result.ConfirmationToken)
	if err != nil {
		t.Fatalf("confirm email: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("confirmed user = %q", user.Email)
	}

	if _, err := engine.SignIn(ctx, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("sign in after confirmation: %v", err)
	}
}

func TestConfirmEmailTokenSingleUse(t *testing.T) {
	engine, _, _ := newTestEngine(t, confirmationRequired)
	ctx := context.Background()

	result := mustSignUp(t, engine, "alice@example.com", "correct-horse")

	if _, err := engine.ConfirmEmail(ctx, result.ConfirmationToken); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := engine.ConfirmEmail(ctx, result.ConfirmationToken); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("second confirm err = %v, want ErrChallengeInvalid", err)
	}
}

func TestSignUpShortPassword(t *testing.T) {
	engine, provider, _ := newTestEngine(t, nil)

	_, err := engine.SignUp(context.Background(), SignUpRequest{
		Email:    "alice@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v, want ErrPasswordPolicy", err)
	}
	if provider.userCount() != 0 {
		t.Fatal("rejected signup must not create a record")
	}
}
