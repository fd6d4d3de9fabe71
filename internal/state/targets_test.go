package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/plantboxd/internal/db"
	"github.com/dokzlo13/plantboxd/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database.DB)
}

func ptr(v float64) *float64 { return &v }

func TestTargetsStore_RoundTrip(t *testing.T) {
	s := NewTargetsStore(openStore(t))

	got, ok, err := s.Load("box-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ok {
		t.Fatal("Load() on empty store reported saved targets")
	}
	if !got.Equal(model.DefaultTargets()) {
		t.Errorf("Load() on empty store = %+v, want defaults", got)
	}

	want := model.SystemTargets{TargetTempC: 26.5, TargetHumidityPct: ptr(60), TriggerWatering: true}
	if err := s.Save("box-1", want, time.Now()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err = s.Load("box-1")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if got.TargetTempC != 26.5 || *got.TargetHumidityPct != 60 {
		t.Errorf("Load() = %+v", got)
	}
	if got.TriggerWatering {
		t.Error("watering trigger must not survive a restart")
	}

	if _, ok, _ := s.Load("box-2"); ok {
		t.Error("targets leaked across devices")
	}
}

func TestTargetsStore_Reset(t *testing.T) {
	s := NewTargetsStore(openStore(t))
	if err := s.Save("box-1", model.DefaultTargets(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, ok, _ := s.Load("box-1"); ok {
		t.Error("Reset() kept saved targets")
	}
}

func TestStore_VersionIncrements(t *testing.T) {
	s := openStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Set("k", "id", []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	_, version, err := s.Get("k", "id")
	if err != nil {
		t.Fatal(err)
	}
	if version != 3 {
		t.Errorf("version = %d, want 3", version)
	}
}
