package auditlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/merklebase/attestd/internal/auditlog"
)

func TestNew_seedsGenesis(t *testing.T) {
	l := auditlog.New()
	ctx := context.Background()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry after New, got %d", n)
	}

	genesis, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if genesis.Hash != auditlog.GenesisHash {
		t.Errorf("genesis hash = %q, want %q", genesis.Hash, auditlog.GenesisHash)
	}
	if genesis.Action != "genesis" {
		t.Errorf("genesis action = %q", genesis.Action)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify on fresh ledger: %v", err)
	}
}

func TestAppend_chainsEntries(t *testing.T) {
	l := auditlog.New()
	ctx := context.Background()

	first, err := l.Append(ctx, "att-1", "submitted", "biz-1", map[string]string{"root": "abc"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.Index != 1 {
		t.Errorf("first entry index = %d, want 1", first.Index)
	}
	if first.PrevHash != auditlog.GenesisHash {
		t.Errorf("first entry prev hash = %q, want genesis", first.PrevHash)
	}

	second, err := l.Append(ctx, "att-1", "revoked", "biz-1", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.PrevHash != first.Hash {
		t.Errorf("second entry prev hash = %q, want %q", second.PrevHash, first.Hash)
	}

	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}

	root, err := l.Root(ctx)
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if root != second.Hash {
		t.Errorf("Root = %q, want newest hash %q", root, second.Hash)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	l := auditlog.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, "att-1", "submitted", "biz-1", i); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entry, err := l.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get(3): %v", err)
	}
	entry.Actor = "intruder"

	if err := l.Verify(ctx); err == nil {
		t.Error("Verify accepted a tampered entry")
	}
}

func TestVerify_survivesMicrosecondRoundTrip(t *testing.T) {
	l := auditlog.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry, err := l.Append(ctx, "att-1", "submitted", "biz-1", i)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if !entry.Timestamp.Equal(entry.Timestamp.Truncate(time.Microsecond)) {
			t.Errorf("entry %d timestamp carries sub-microsecond precision: %v",
				entry.Index, entry.Timestamp)
		}
	}

	// timestamptz stores microseconds; reading an entry back must not
	// change its hash.
	for i := 1; i <= 3; i++ {
		entry, err := l.Get(ctx, i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		entry.Timestamp = entry.Timestamp.Truncate(time.Microsecond)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify after microsecond round-trip: %v", err)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := auditlog.New()
	if _, err := l.Get(context.Background(), 7); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := l.Get(context.Background(), -1); err == nil {
		t.Error("expected error for negative index")
	}
}
