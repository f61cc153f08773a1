package audit_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"fleetd/internal/agents"
	"fleetd/internal/audit"
	"fleetd/internal/db"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := agents.Migrate(ctx, conn); err != nil {
		t.Fatal(err)
	}
	if err := audit.Migrate(ctx, conn); err != nil {
		t.Fatal(err)
	}
	return conn
}

func strPtr(s string) *string { return &s }

func TestAppendAndList(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	rec := audit.NewRecorder()

	a, _, err := agents.NewResolver().ResolveOrCreate(ctx, conn, agents.Registration{GUID: "g1", Hostname: "H1"})
	if err != nil {
		t.Fatal(err)
	}

	id, err := rec.Append(ctx, conn, audit.Entry{
		IdentityID:   &a.ID,
		GUID:         strPtr("g1"),
		Action:       audit.ActionAgentRegistered,
		ResourceType: audit.ResourceAgent,
		ResourceID:   strPtr("1"),
		Details:      map[string]any{"created": true},
		Origin:       audit.Origin{IPAddress: "10.0.0.1", UserAgent: "agent/1.0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("expected row id")
	}

	// Identity-less entry
	if _, err := rec.Append(ctx, conn, audit.Entry{
		Action:       audit.ActionInventorySynced,
		ResourceType: audit.ResourceInventory,
	}); err != nil {
		t.Fatal(err)
	}

	all, err := audit.List(ctx, conn, audit.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0].Action != audit.ActionInventorySynced {
		t.Errorf("expected newest first, got %s", all[0].Action)
	}
	if all[1].GUID == nil || *all[1].GUID != "g1" || all[1].IPAddress != "10.0.0.1" || all[1].UserAgent != "agent/1.0" {
		t.Errorf("unexpected event %+v", all[1])
	}
	if all[1].Details["created"] != true {
		t.Errorf("details not round-tripped: %v", all[1].Details)
	}
	if all[0].GUID != nil || all[0].IdentityID != nil || all[0].Details != nil {
		t.Errorf("identity-less event should have nil refs, got %+v", all[0])
	}

	byGUID, _ := audit.List(ctx, conn, audit.Filter{GUID: "g1"})
	if len(byGUID) != 1 {
		t.Errorf("guid filter: expected 1, got %d", len(byGUID))
	}
	byAction, _ := audit.List(ctx, conn, audit.Filter{Action: audit.ActionInventorySynced, Limit: 5})
	if len(byAction) != 1 {
		t.Errorf("action filter: expected 1, got %d", len(byAction))
	}

	n, err := audit.Count(ctx, conn, audit.ActionAgentRegistered, "1")
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestAppendRejectsIncompleteEntry(t *testing.T) {
	conn := setupTestDB(t)
	if _, err := audit.NewRecorder().Append(context.Background(), conn, audit.Entry{Action: audit.ActionAgentOffline}); err == nil {
		t.Error("expected error without resource type")
	}
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		if _, err := audit.NewRecorder().Append(ctx, tx, audit.Entry{
			Action: audit.ActionAgentOffline, ResourceType: audit.ResourceAgent,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	evs, _ := audit.List(ctx, conn, audit.Filter{})
	if len(evs) != 0 {
		t.Errorf("audit row survived rollback: %d", len(evs))
	}
}
