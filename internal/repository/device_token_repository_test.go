package repository

import (
	"sort"
	"testing"
)

func TestDeviceTokenRepositoryRegisterAndList(t *testing.T) {
	r := NewDeviceTokenRepository()

	r.RegisterToken("a", "android", 1)
	r.RegisterToken("b", "ios", 2)
	r.RegisterToken("a", "ios", 3) // re-registration updates, not duplicates

	if got := r.GetTokenCount(); got != 2 {
		t.Fatalf("token count got=%d want=2", got)
	}

	tokens := r.GetAllTokens()
	sort.Strings(tokens)
	if len(tokens) != 2 || tokens[0] != "a" || tokens[1] != "b" {
		t.Fatalf("tokens got=%v want=[a b]", tokens)
	}
}

func TestDeviceTokenRepositoryUnregister(t *testing.T) {
	r := NewDeviceTokenRepository()
	r.RegisterToken("a", "android", 1)

	r.UnregisterToken("a")
	r.UnregisterToken("missing")

	if got := r.GetTokenCount(); got != 0 {
		t.Fatalf("token count got=%d want=0", got)
	}
}
