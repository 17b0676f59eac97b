package session

import "errors"

var (
	// ErrSessionAlreadyActive попытка запустить сессию пока предыдущая не завершена
	ErrSessionAlreadyActive = errors.New("session already active")

	// ErrSessionNotActive операция требует активной сессии
	ErrSessionNotActive = errors.New("session not active")

	// ErrDeviceUnavailable устройство захвата не удалось открыть.
	// Фатально: сессия не стартует.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrCaptureInterrupted захват оборвался посреди сессии.
	// Фатально: сессия завершается.
	ErrCaptureInterrupted = errors.New("capture interrupted")
)
