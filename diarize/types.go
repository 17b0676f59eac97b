package diarize

import (
	"context"
	"errors"

	"talkbridge/audio"
)

// TokenKind тип токена диаризации
type TokenKind string

const (
	// KindWord слово, привязанное к спикеру
	KindWord TokenKind = "word"
	// KindSpacing межсловный разделитель, содержимого спикера не несёт
	KindSpacing TokenKind = "spacing"
)

// Token минимальная единица транскрипта диаризации.
// Провайдер отдаёт токены в строгом временном порядке.
type Token struct {
	Speaker string    `json:"speaker"` // непрозрачный id спикера от провайдера
	Text    string    `json:"text"`
	Kind    TokenKind `json:"kind"`
	StartMs int64     `json:"startMs"`
	EndMs   int64     `json:"endMs"`
	LogProb float64   `json:"logProb"` // выше = увереннее
}

// ErrDiarizationFailed провайдер диаризации вернул ошибку.
// Не фатально для сессии: сегмент помечается failed, запись продолжается.
var ErrDiarizationFailed = errors.New("diarization failed")

// Provider внешний сервис диаризации
type Provider interface {
	// Transcribe отправляет аудио сегмента и возвращает поток токенов.
	// Пустой поток это валидный результат (сегмент без речи).
	Transcribe(ctx context.Context, buf *audio.Buffer) ([]Token, error)
}
