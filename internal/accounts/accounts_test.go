package accounts

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/tariel-x/referral/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func newTestService() (*Service, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewService(s, bcrypt.MinCost, nil), s
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{FirstName: "Alice", LastName: "L", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register first: %v", err)
	}

	_, err = svc.Register(ctx, RegisterInput{FirstName: "Eve", LastName: "E", Email: "a@x.com", Password: "other"})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	stored, err := svc.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find first: %v", err)
	}
	if stored.FirstName != "Alice" || stored.ReferralCode != first.ReferralCode {
		t.Fatalf("first user changed: %+v", stored)
	}
	if _, err := svc.Authenticate(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("first user's password should still work: %v", err)
	}
}

func TestRegisterInitialisesCountersAndHashesPassword(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.Register(context.Background(), RegisterInput{FirstName: "Alice", LastName: "L", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.TotalReferrals != 0 || user.TotalEarnings != 0 {
		t.Fatalf("expected zero counters, got %d / %v", user.TotalReferrals, user.TotalEarnings)
	}
	if user.PasswordHash == "pw" || user.PasswordHash == "" {
		t.Fatalf("password must be hashed, got %q", user.PasswordHash)
	}
	if !codePattern.MatchString(user.ReferralCode) {
		t.Fatalf("referral code %q does not match [A-Z0-9]{8}", user.ReferralCode)
	}
	if user.CreatedAt.IsZero() {
		t.Fatalf("created_at must be set")
	}
}

func TestReferralCodesAreDistinct(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const n = 50
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		user, err := svc.Register(ctx, RegisterInput{
			FirstName: "U",
			LastName:  "N",
			Email:     "user" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@x.com",
			Password:  "pw",
		})
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if !codePattern.MatchString(user.ReferralCode) {
			t.Fatalf("bad code %q", user.ReferralCode)
		}
		if _, dup := seen[user.ReferralCode]; dup {
			t.Fatalf("duplicate referral code %q", user.ReferralCode)
		}
		seen[user.ReferralCode] = struct{}{}
	}
}

func TestGenerateReferralCodeRetriesAndWidens(t *testing.T) {
	ctx := context.Background()

	calls := 0
	code, err := generateReferralCode(ctx, func(context.Context, string) (bool, error) {
		calls++
		return calls <= 3, nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls != 4 || len(code) != ReferralCodeLength {
		t.Fatalf("expected 4 draws of length 8, got %d draws, code %q", calls, code)
	}

	calls = 0
	code, err = generateReferralCode(ctx, func(context.Context, string) (bool, error) {
		calls++
		return calls <= codeWidenAfter, nil
	})
	if err != nil {
		t.Fatalf("generate widened: %v", err)
	}
	if len(code) != ReferralCodeLength+1 {
		t.Fatalf("expected widened code of length %d, got %q", ReferralCodeLength+1, code)
	}

	_, err = generateReferralCode(ctx, func(context.Context, string) (bool, error) { return true, nil })
	if !errors.Is(err, ErrReferralCodeExhausted) {
		t.Fatalf("expected ErrReferralCodeExhausted, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{FirstName: "Alice", LastName: "L", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Authenticate(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected %s, got %s", registered.ID, user.ID)
	}

	if _, err := svc.Authenticate(ctx, "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@x.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.FindByID(context.Background(), "missing"); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUnknownEmailHashMatchesServiceCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 2, 0} {
		svc := NewService(store.NewMemoryStore(), cost, nil)

		dummyCost, err := bcrypt.Cost(svc.dummyHash)
		if err != nil {
			t.Fatalf("cost %d: dummy hash unreadable: %v", cost, err)
		}
		if dummyCost != svc.bcryptCost {
			t.Fatalf("cost %d: dummy hash cost %d, service cost %d", cost, dummyCost, svc.bcryptCost)
		}

		user, err := svc.Register(context.Background(), RegisterInput{FirstName: "A", LastName: "L", Email: "a@x.com", Password: "pw"})
		if err != nil {
			t.Fatalf("cost %d: register: %v", cost, err)
		}
		userCost, err := bcrypt.Cost([]byte(user.PasswordHash))
		if err != nil {
			t.Fatalf("cost %d: user hash unreadable: %v", cost, err)
		}
		if userCost != dummyCost {
			t.Fatalf("cost %d: user hash cost %d differs from dummy %d", cost, userCost, dummyCost)
		}
	}
}
