package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"talkbridge/session"
)

// TestJSONStore_SaveSegment сегмент ложится в <sessionId>/segments/NNN.json
func TestJSONStore_SaveSegment(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}

	seg := &session.Segment{
		Number:     2,
		SessionID:  "sess-1",
		Status:     session.SegmentProcessed,
		DurationMs: 30000,
	}
	if err := store.SaveSegment(seg); err != nil {
		t.Fatalf("SaveSegment failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.dataDir, "sess-1", "segments", "002.json"))
	if err != nil {
		t.Fatalf("Segment file missing: %v", err)
	}
	var loaded session.Segment
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if loaded.Number != 2 || loaded.Status != session.SegmentProcessed || loaded.DurationMs != 30000 {
		t.Errorf("Loaded segment: %+v", loaded)
	}
}

// TestJSONStore_SaveTurnsAppends задачи финализации дописывают реплики
// в общий turns.json, ранее записанные не теряются
func TestJSONStore_SaveTurnsAppends(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}

	first := []session.Turn{{ID: "t1", SegmentNumber: 1, Role: session.RoleElderly, Text: "Помню"}}
	second := []session.Turn{
		{ID: "t2", SegmentNumber: 2, Role: session.RoleYoungAdult, Text: "Расскажи"},
		{ID: "t3", SegmentNumber: 2, Role: session.RoleElderly, Text: "Жили мы тогда"},
	}

	if err := store.SaveTurns("sess-1", first); err != nil {
		t.Fatalf("First SaveTurns failed: %v", err)
	}
	if err := store.SaveTurns("sess-1", second); err != nil {
		t.Fatalf("Second SaveTurns failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.dataDir, "sess-1", "turns.json"))
	if err != nil {
		t.Fatalf("Turns file missing: %v", err)
	}
	var all []session.Turn
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(all))
	}
	if all[0].ID != "t1" || all[2].ID != "t3" {
		t.Errorf("Turn order broken: %+v", all)
	}
}

// TestJSONStore_SaveTurnsConcurrent задачи финализации пишут конкурентно:
// при перечитывании файла целиком без сериализации писатели затирают
// и ломают turns.json
func TestJSONStore_SaveTurnsConcurrent(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn := session.Turn{
				ID:            fmt.Sprintf("t%d", i),
				SegmentNumber: i + 1,
				Role:          session.RoleElderly,
				Text:          "Помню",
			}
			if err := store.SaveTurns("sess-1", []session.Turn{turn}); err != nil {
				t.Errorf("SaveTurns %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(store.dataDir, "sess-1", "turns.json"))
	if err != nil {
		t.Fatalf("Turns file missing: %v", err)
	}
	var all []session.Turn
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("Corrupted turns.json: %v", err)
	}
	if len(all) != writers {
		t.Fatalf("Expected %d turns, got %d (lost by concurrent writers)", writers, len(all))
	}

	seen := make(map[string]bool)
	for _, turn := range all {
		seen[turn.ID] = true
	}
	if len(seen) != writers {
		t.Errorf("Expected %d distinct turns, got %d", writers, len(seen))
	}
}

// TestJSONStore_SaveTurnsEmpty пустой список реплик не трогает файл
func TestJSONStore_SaveTurnsEmpty(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}

	if err := store.SaveTurns("sess-1", nil); err != nil {
		t.Fatalf("SaveTurns failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.dataDir, "sess-1", "turns.json")); !os.IsNotExist(err) {
		t.Error("Empty SaveTurns should not create turns.json")
	}
}

// TestJSONStore_SaveSnapshot итог сессии ложится в meta.json
func TestJSONStore_SaveSnapshot(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}

	snap := session.Snapshot{SessionID: "sess-1", Turns: 5, TotalDurationMs: 42000, Reason: session.EndReasonUser}
	if err := store.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.dataDir, "sess-1", "meta.json"))
	if err != nil {
		t.Fatalf("Meta file missing: %v", err)
	}
	var loaded session.Snapshot
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if loaded.Turns != 5 || loaded.Reason != session.EndReasonUser {
		t.Errorf("Loaded snapshot: %+v", loaded)
	}
}

// TestLocalUploader_Upload блоб пишется под dataDir, возвращается file:// URL
func TestLocalUploader_Upload(t *testing.T) {
	dir := t.TempDir()
	u := NewLocalUploader(dir)

	url, err := u.Upload(context.Background(), []byte("mp3-bytes"), "sess-1/segments/001.mp3")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("URL: got %q, expected file:// prefix", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sess-1", "segments", "001.mp3"))
	if err != nil {
		t.Fatalf("Blob missing: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("Blob content: %q", data)
	}
}
