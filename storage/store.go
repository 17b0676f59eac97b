package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"talkbridge/session"
)

// Store персистентность сегментов и реплик.
// Для ядра записи это fire-and-forget: ошибки логируются, сессию не валят.
type Store interface {
	SaveSegment(seg *session.Segment) error
	SaveTurns(sessionID string, turns []session.Turn) error
	SaveSnapshot(snapshot session.Snapshot) error
}

// JSONStore хранит метаданные сессии в JSON файлах:
//
//	<dataDir>/<sessionId>/segments/NNN.json
//	<dataDir>/<sessionId>/turns.json
//	<dataDir>/<sessionId>/meta.json
//
// Задачи финализации сегментов пишут конкурентно и в произвольном порядке,
// все операции сериализуются мьютексом.
type JSONStore struct {
	mu      sync.Mutex
	dataDir string
}

// NewJSONStore создаёт хранилище в dataDir
func NewJSONStore(dataDir string) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &JSONStore{dataDir: dataDir}, nil
}

// SaveSegment сохраняет метаданные сегмента
func (s *JSONStore) SaveSegment(seg *session.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dataDir, seg.SessionID, "segments")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create segments dir: %w", err)
	}

	data, err := json.MarshalIndent(seg, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d.json", seg.Number))
	return os.WriteFile(path, data, 0644)
}

// SaveTurns дописывает реплики в turns.json сессии.
// Файл перечитывается и пишется целиком под мьютексом: без сериализации
// два конкурентных писателя затирают реплики друг друга.
func (s *JSONStore) SaveTurns(sessionID string, turns []session.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dataDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	path := filepath.Join(dir, "turns.json")

	var all []session.Turn
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &all)
	}
	all = append(all, turns...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveSnapshot сохраняет итог завершённой сессии
func (s *JSONStore) SaveSnapshot(snapshot session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dataDir, snapshot.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0644)
}
