package refdata

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestGenerateShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	snap := Generate(rand.New(rand.NewSource(1)), now)

	if len(snap.Orders) != 10 {
		t.Fatalf("expected 10 orders, got %d", len(snap.Orders))
	}
	if len(snap.Vehicles) != 5 {
		t.Fatalf("expected 5 vehicles, got %d", len(snap.Vehicles))
	}
	if len(snap.Weather) != 5 {
		t.Fatalf("expected 5 cities, got %d", len(snap.Weather))
	}
	if len(snap.Traffic) != 5 {
		t.Fatalf("expected 5 roads, got %d", len(snap.Traffic))
	}
	if snap.Orders[0].OrderID != "ORD-1000" {
		t.Fatalf("unexpected first order id: %s", snap.Orders[0].OrderID)
	}
	if snap.Vehicles[0].VehicleID != "VEH-100" {
		t.Fatalf("unexpected first vehicle id: %s", snap.Vehicles[0].VehicleID)
	}
	for city, w := range snap.Weather {
		if len(w.Forecast) != 4 {
			t.Fatalf("city %s: expected 4 forecast entries, got %d", city, len(w.Forecast))
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	a := Generate(rand.New(rand.NewSource(42)), now)
	b := Generate(rand.New(rand.NewSource(42)), now)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed and time must produce identical snapshots")
	}

	c := Generate(rand.New(rand.NewSource(43)), now)
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds should not produce identical snapshots")
	}
}

func TestProviderPersistsAndReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := &Provider{Dir: dir, Seed: 7}

	first := p.Load()
	if _, err := os.Stat(filepath.Join(dir, "refdata.json")); err != nil {
		t.Fatalf("expected persisted snapshot: %v", err)
	}

	// A second load must come from disk, not a regeneration.
	p2 := &Provider{Dir: dir, Seed: 99}
	second := p2.Load()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected the persisted snapshot to be reused")
	}
}

func TestProviderRegeneratesOnCorruptSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "refdata.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt snapshot: %v", err)
	}

	p := &Provider{Dir: dir, Seed: 7}
	snap := p.Load()
	if len(snap.Orders) != 10 {
		t.Fatalf("expected regenerated snapshot, got %d orders", len(snap.Orders))
	}
}
