package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

func testDocument(city, date string, max float64) models.Document {
	return models.Document{
		City:      city,
		Date:      date,
		FetchedAt: time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC),
		Summary: models.DailySummary{
			TemperatureMin:     10,
			TemperatureMax:     max,
			WindDirection:      "NE",
			WindSpeedMax:       4.2,
			BeaufortScale:      3,
			MorningDescription: "Fair",
		},
		Samples: []models.Sample{{
			Time:              time.Date(2024, 10, 19, 4, 0, 0, 0, time.UTC),
			AirTemperature:    models.Float(10),
			WindFromDirection: models.Float(45),
			WindSpeed:         models.Float(4.2),
			Symbol12h:         "fair_day",
		}},
	}
}

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestFileStore_SaveLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	doc := testDocument("Cape Town", "2024-10-19", 21)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "Cape Town-2024-10-19.json")); err != nil {
		t.Fatalf("expected document file: %v", err)
	}

	got, err := s.Load(ctx, "Cape Town", "2024-10-19")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Load() = %+v\nwant %+v", got, doc)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testDocument("Durban", "2024-10-19", 21)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, testDocument("Durban", "2024-10-19", 27)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "Durban", "2024-10-19")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Summary.TemperatureMax != 27 {
		t.Errorf("TemperatureMax = %v, want 27 (overwrite, not merge)", got.Summary.TemperatureMax)
	}
	keys, _ := s.Keys()
	if len(keys) != 1 {
		t.Errorf("Keys() = %v, want one document and no temp files", keys)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Load(context.Background(), "Durban", "2024-10-19")
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("Load() error = %v, want ErrPersistenceUnavailable", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist in chain", err)
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "Durban-2024-10-19.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load(context.Background(), "Durban", "2024-10-19")
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("Load() error = %v, want ErrPersistenceUnavailable", err)
	}
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, city := range []string{"../etc", "a/b", `a\b`, ".hidden", ""} {
		if err := s.Save(ctx, testDocument(city, "2024-10-19", 1)); err == nil {
			t.Errorf("Save(%q) succeeded, want error", city)
		}
		if _, err := s.Load(ctx, city, "2024-10-19"); !errors.Is(err, ErrPersistenceUnavailable) {
			t.Errorf("Load(%q) error = %v, want ErrPersistenceUnavailable", city, err)
		}
	}
}

func TestFileStore_Keys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, d := range []models.Document{
		testDocument("Pretoria", "2024-10-20", 1),
		testDocument("Durban", "2024-10-19", 1),
	} {
		if err := s.Save(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644)

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	want := []string{"Durban-2024-10-19", "Pretoria-2024-10-20"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

// Readers racing a writer must always decode a complete document.
func TestFileStore_ConcurrentReadsDuringWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testDocument("Jhb", "2024-10-19", 20)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := s.Save(ctx, testDocument("Jhb", "2024-10-19", float64(20+i))); err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := s.Load(ctx, "Jhb", "2024-10-19"); err != nil {
				t.Errorf("Load() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestFileStore_CanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, testDocument("Jhb", "2024-10-19", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}
