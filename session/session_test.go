package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/persistence"
)

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	token := "test_session_1"
	user := models.User{ID: 1}

	manager.Add(token, user)
	if manager.Len() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Len())
	}

	got, exists := manager.Get(token)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if got.ID != user.ID {
		t.Fatalf("Get should return the cached user, got %+v", got)
	}

	manager.Remove(token)
	if manager.Len() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Len())
	}
	if _, exists = manager.Get(token); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_InvalidateUser(t *testing.T) {
	manager := NewManager()
	manager.Add("a", models.User{ID: 100})
	manager.Add("b", models.User{ID: 200})
	manager.Add("c", models.User{ID: 100})

	if n := manager.InvalidateUser(100); n != 2 {
		t.Errorf("Expected 2 sessions removed for user 100, got %d", n)
	}
	if _, ok := manager.Get("b"); !ok {
		t.Error("Other users' sessions should be kept")
	}
}

func TestNewToken(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if len(token) != TokenLength {
		t.Fatalf("Expected %d characters, got %d", TokenLength, len(token))
	}
	for _, c := range token {
		if !strings.ContainsRune(tokenChars, c) {
			t.Fatalf("Unexpected character %q in %q", c, token)
		}
	}
}

func TestNewTokenRejectsBiasedBytes(t *testing.T) {
	// 248..255 are above the limit and must be skipped
	src := bytes.Repeat([]byte{255, 0, 248, 61}, 20)
	token, err := newTokenFrom(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("newTokenFrom failed: %v", err)
	}
	if token != strings.Repeat("A9", TokenLength/2) {
		t.Fatalf("Unexpected token %q", token)
	}
}

func TestNewTokenShortRead(t *testing.T) {
	if _, err := newTokenFrom(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("Expected an error for a short random source")
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator(3, 15)

	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{"ab", ErrNameTooShort, "name must be at least 3 characters"},
		{"abcdefghijklmnop", ErrNameTooLong, "name must be at most 15 characters"},
		{"bad name", ErrNameInvalid, "name can only contain numbers, letters, and underscores"},
		{"héllo", ErrNameInvalid, "name can only contain numbers, letters, and underscores"},
		{"trader_42", nil, ""},
		{"abc", nil, ""},
	}
	for _, c := range cases {
		got, err := v.Validate(c.name)
		if c.err == nil {
			if err != nil || got != c.name {
				t.Errorf("Validate(%q) = %q, %v; want accepted", c.name, got, err)
			}
			continue
		}
		if !errors.Is(err, c.err) {
			t.Errorf("Validate(%q) error = %v, want %v", c.name, err, c.err)
			continue
		}
		if err.Error() != c.msg {
			t.Errorf("Validate(%q) message = %q, want %q", c.name, err.Error(), c.msg)
		}
	}
}

func TestProvider_Resolve(t *testing.T) {
	store := persistence.NewMemory()
	provider := NewProvider(store, nil)
	ctx := context.Background()

	user, issued, err := provider.Resolve(ctx, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if issued == "" {
		t.Fatal("Resolve should issue a token for a new session")
	}
	if user.DisplayName() != models.DefaultName(user.ID) {
		t.Errorf("New users should get the default name, got %q", user.DisplayName())
	}

	again, reissued, err := provider.Resolve(ctx, issued)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if reissued != "" {
		t.Errorf("Known token should not be reissued, got %q", reissued)
	}
	if again.ID != user.ID {
		t.Errorf("Expected user %d, got %d", user.ID, again.ID)
	}

	// not cached, found in the store
	provider.Manager().Remove(issued)
	again, _, err = provider.Resolve(ctx, issued)
	if err != nil || again.ID != user.ID {
		t.Fatalf("Expected store lookup to find user %d, got %+v, %v", user.ID, again, err)
	}

	other, issuedOther, err := provider.Resolve(ctx, "unknown-token")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if issuedOther == "" || other.ID == user.ID {
		t.Errorf("Unknown tokens should create a new session, got %+v %q", other, issuedOther)
	}
}

func TestCookie(t *testing.T) {
	c := Cookie("tok", true)
	if c.Name != CookieName || c.Path != "/" || !c.HttpOnly || !c.Secure {
		t.Errorf("Unexpected cookie %+v", c)
	}
	if c.MaxAge != 60*60*24*365 {
		t.Errorf("Expected one year Max-Age, got %d", c.MaxAge)
	}
}
