package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"marketmaker-backend/internal/domain"
)

func TestInMemoryBotRepositoryCRUD(t *testing.T) {
	r := NewInMemoryBotRepository()
	bot := &domain.Bot{Owner: "alice", TokenAddress: "0xabc", BudgetUSDT: 1000}

	if err := r.Create(bot); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(bot); !errors.Is(err, domain.ErrBotExists) {
		t.Fatalf("duplicate create err got=%v want=%v", err, domain.ErrBotExists)
	}

	got, err := r.Get("alice", "0xabc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BudgetUSDT != 1000 {
		t.Fatalf("budget got=%v want=1000", got.BudgetUSDT)
	}

	got.BudgetUSDT = 2000
	if err := r.Update(got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := r.Get("alice", "0xabc")
	if again.BudgetUSDT != 2000 {
		t.Fatalf("budget after update got=%v want=2000", again.BudgetUSDT)
	}

	if err := r.Delete("alice", "0xabc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get("alice", "0xabc"); !errors.Is(err, domain.ErrBotNotFound) {
		t.Fatalf("Get after delete err got=%v want=%v", err, domain.ErrBotNotFound)
	}
	if err := r.Delete("alice", "0xabc"); !errors.Is(err, domain.ErrBotNotFound) {
		t.Fatalf("second delete err got=%v want=%v", err, domain.ErrBotNotFound)
	}
	if err := r.Update(bot); !errors.Is(err, domain.ErrBotNotFound) {
		t.Fatalf("update of missing bot err got=%v want=%v", err, domain.ErrBotNotFound)
	}
}

func TestInMemoryBotRepositoryReturnsCopies(t *testing.T) {
	r := NewInMemoryBotRepository()
	if err := r.Create(&domain.Bot{Owner: "alice", TokenAddress: "0xabc", BudgetUSDT: 1000}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := r.Get("alice", "0xabc")
	first.BudgetUSDT = 9999

	second, _ := r.Get("alice", "0xabc")
	if second.BudgetUSDT != 1000 {
		t.Fatalf("stored record mutated through a returned copy: %v", second.BudgetUSDT)
	}
}

func TestInMemoryBotRepositoryGetActive(t *testing.T) {
	r := NewInMemoryBotRepository()
	for i, active := range []bool{true, false, true} {
		bot := &domain.Bot{Owner: "alice", TokenAddress: fmt.Sprintf("0xtoken%d", i), Active: active}
		if err := r.Create(bot); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if got := len(r.GetActive()); got != 2 {
		t.Fatalf("active bots got=%d want=2", got)
	}
}

func TestInMemoryTradeLogOrderAndLimit(t *testing.T) {
	r := NewInMemoryTradeLogRepository()
	for i := 0; i < 5; i++ {
		err := r.Append(&domain.TradeLogEntry{
			ID:           fmt.Sprintf("e%d", i),
			Owner:        "alice",
			TokenAddress: "0xabc",
		})
		if err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}
	r.Append(&domain.TradeLogEntry{ID: "other", Owner: "bob", TokenAddress: "0xdef"})

	history := r.History("alice", "0xabc", 3)
	if len(history) != 3 {
		t.Fatalf("history length got=%d want=3", len(history))
	}
	// Newest first.
	if history[0].ID != "e4" || history[2].ID != "e2" {
		t.Fatalf("history order got=[%s..%s] want=[e4..e2]", history[0].ID, history[2].ID)
	}

	recent := r.Recent(10)
	if len(recent) != 6 {
		t.Fatalf("recent length got=%d want=6", len(recent))
	}
	if recent[0].ID != "other" {
		t.Fatalf("recent head got=%s want=other", recent[0].ID)
	}
}

func TestInMemoryOwnerWalletStore(t *testing.T) {
	r := NewInMemoryOwnerWalletStore()
	r.Put("alice", domain.Wallet{Address: "0xalice", PrivateKey: "key"})

	w, err := r.Get(context.Background(), "alice")
	if err != nil || w.Address != "0xalice" {
		t.Fatalf("Get got=(%+v,%v)", w, err)
	}
	if _, err := r.Get(context.Background(), "bob"); !errors.Is(err, domain.ErrWalletNotFound) {
		t.Fatalf("missing wallet err got=%v want=%v", err, domain.ErrWalletNotFound)
	}
}

func TestInMemoryTokenRegistry(t *testing.T) {
	r := NewInMemoryTokenRegistry("0xabc")
	ctx := context.Background()

	if ok, _ := r.Exists(ctx, "0xabc"); !ok {
		t.Fatalf("seeded token not found")
	}
	if ok, _ := r.Exists(ctx, "0xdef"); ok {
		t.Fatalf("unknown token reported as existing")
	}

	r.Add("0xdef")
	if ok, _ := r.Exists(ctx, "0xdef"); !ok {
		t.Fatalf("added token not found")
	}
}
