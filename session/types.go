package session

import (
	"time"
)

// SessionState представляет состояние сессии
type SessionState string

const (
	StateIdle   SessionState = "idle"
	StateActive SessionState = "active"
	StateEnding SessionState = "ending"
	StateEnded  SessionState = "ended"
)

// SegmentStatus представляет состояние сегмента записи
type SegmentStatus string

const (
	SegmentRecording  SegmentStatus = "recording"
	SegmentFinalizing SegmentStatus = "finalizing"
	SegmentProcessed  SegmentStatus = "processed"
	SegmentFailed     SegmentStatus = "failed"
)

// Role семантическая роль участника разговора
type Role string

const (
	RoleElderly    Role = "elderly"
	RoleYoungAdult Role = "young_adult"
)

// EndReason причина завершения сессии
type EndReason string

const (
	// EndReasonUser пользователь остановил запись вручную
	EndReasonUser EndReason = "user_stop"
	// EndReasonMaxSegments достигнут лимит количества сегментов
	EndReasonMaxSegments EndReason = "max_segments"
	// EndReasonTimeout достигнута максимальная длительность сессии
	EndReasonTimeout EndReason = "session_timeout"
	// EndReasonCaptureError фатальная ошибка захвата аудио
	EndReasonCaptureError EndReason = "capture_error"
)

// Utterance непрерывная реплика одного спикера, собранная из токенов диаризации
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	Confidence float64 `json:"confidence"`
}

// DurationMs возвращает длительность реплики в миллисекундах
func (u Utterance) DurationMs() int64 {
	return u.EndMs - u.StartMs
}

// Turn реплика с определённой ролью, принадлежит сегменту.
// После создания не изменяется.
type Turn struct {
	ID            string  `json:"id"`
	SegmentNumber int     `json:"segmentNumber"`
	Speaker       string  `json:"speaker"`
	Role          Role    `json:"role"`
	Text          string  `json:"text"`
	StartMs       int64   `json:"startMs"`
	EndMs         int64   `json:"endMs"`
	Confidence    float64 `json:"confidence"`
}

// Segment одно окно записи фиксированной длины
type Segment struct {
	Number     int           `json:"number"` // 1-based, строго по порядку, без пропусков
	SessionID  string        `json:"sessionId"`
	Status     SegmentStatus `json:"status"`
	DurationMs int64         `json:"durationMs"`
	AudioURL   string        `json:"audioUrl,omitempty"`
	Turns      []Turn        `json:"turns,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Stats счётчики сессии. Живые пока сессия активна, замороженные после завершения.
type Stats struct {
	SessionID       string `json:"sessionId"`
	TurnCount       int    `json:"turnCount"`
	ElderlyTurns    int    `json:"elderlyTurns"`
	YoungAdultTurns int    `json:"youngAdultTurns"`
	TotalDurationMs int64  `json:"totalDurationMs"`
	IsActive        bool   `json:"isActive"`
}

// Snapshot неизменяемый итог завершённой сессии
type Snapshot struct {
	SessionID       string    `json:"sessionId"`
	Turns           int       `json:"turns"`
	TotalDurationMs int64     `json:"totalDurationMs"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	Reason          EndReason `json:"reason"`
}

// Config параметры нарезки сессии на сегменты
type Config struct {
	SegmentWindow  time.Duration // длина одного сегмента
	MaxSegments    int           // лимит количества сегментов
	MaxSessionTime time.Duration // лимит общей длительности записи
	HeuristicRoles bool          // принудительно использовать эвристический классификатор ролей
}

// DefaultConfig возвращает параметры по умолчанию: 30-секундные сегменты,
// максимум 10 сегментов, максимум 5 минут записи
func DefaultConfig() Config {
	return Config{
		SegmentWindow:  30 * time.Second,
		MaxSegments:    10,
		MaxSessionTime: 5 * time.Minute,
	}
}
