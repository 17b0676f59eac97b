package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker владеет счётчиками сессии и следит за машиной состояний
// Idle -> Active -> Ending -> Ended.
//
// Задачи финализации сегментов пишут реплики конкурентно и в произвольном
// порядке, поэтому все операции сериализуются мьютексом.
type Tracker struct {
	mu sync.Mutex

	sessionID       string
	state           SessionState
	turnCount       int
	elderlyTurns    int
	youngAdultTurns int
	totalDurationMs int64
	startedAt       time.Time
	endedAt         time.Time
}

// NewTracker создаёт трекер в состоянии Idle
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// Start запускает новую сессию: генерирует id, обнуляет счётчики.
// Ошибка если сессия уже идёт.
func (t *Tracker) Start() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateIdle {
		return "", fmt.Errorf("%w: state=%s", ErrSessionAlreadyActive, t.state)
	}

	t.sessionID = uuid.New().String()
	t.state = StateActive
	t.turnCount = 0
	t.elderlyTurns = 0
	t.youngAdultTurns = 0
	t.totalDurationMs = 0
	t.startedAt = time.Now()
	t.endedAt = time.Time{}

	return t.sessionID, nil
}

// RecordTurn учитывает реплику в счётчиках сессии.
// Принимается в состояниях Active и Ending: задачи финализации, запущенные
// до остановки, доносят реплики последнего сегмента уже после неё.
func (t *Tracker) RecordTurn(turn Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive && t.state != StateEnding {
		return fmt.Errorf("%w: state=%s", ErrSessionNotActive, t.state)
	}

	t.turnCount++
	switch turn.Role {
	case RoleElderly:
		t.elderlyTurns++
	default:
		t.youngAdultTurns++
	}
	t.totalDurationMs += turn.EndMs - turn.StartMs

	return nil
}

// MarkEnding переводит сессию в Ending: новые сегменты больше не стартуют,
// но запущенные задачи финализации ещё доносят реплики
func (t *Tracker) MarkEnding() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateActive {
		t.state = StateEnding
	}
}

// End замораживает сессию и возвращает итоговый снимок.
// Повторный вызов после Ended - ошибка, счётчики не меняются
// и старый снимок повторно не выдаётся.
func (t *Tracker) End(reason EndReason) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive && t.state != StateEnding {
		return Snapshot{}, fmt.Errorf("%w: state=%s", ErrSessionNotActive, t.state)
	}

	t.state = StateEnded
	t.endedAt = time.Now()

	return Snapshot{
		SessionID:       t.sessionID,
		Turns:           t.turnCount,
		TotalDurationMs: t.totalDurationMs,
		StartedAt:       t.startedAt,
		EndedAt:         t.endedAt,
		Reason:          reason,
	}, nil
}

// State возвращает текущее состояние сессии
func (t *Tracker) State() SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID возвращает id текущей (или последней) сессии
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Stats возвращает снимок счётчиков. Безопасно в любом состоянии:
// живые значения пока сессия активна, замороженные после завершения.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		SessionID:       t.sessionID,
		TurnCount:       t.turnCount,
		ElderlyTurns:    t.elderlyTurns,
		YoungAdultTurns: t.youngAdultTurns,
		TotalDurationMs: t.totalDurationMs,
		IsActive:        t.state == StateActive || t.state == StateEnding,
	}
}
