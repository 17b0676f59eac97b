package session

import (
	"strings"

	"talkbridge/diarize"
)

// openBuffer открытая реплика в процессе сборки
type openBuffer struct {
	speaker   string
	text      strings.Builder
	startMs   int64
	endMs     int64
	confAcc   float64
	wordCount int
}

// Compile собирает упорядоченный поток токенов в реплики спикеров.
//
// Сканируем токены по порядку, держим один открытый буфер. Spacing-токены
// приклеиваются к тексту открытого буфера как есть. Word-токен другого
// спикера закрывает буфер и открывает новый. Последний буфер обязательно
// сбрасывается после цикла, иначе финальные слова последнего спикера
// молча теряются.
func Compile(tokens []diarize.Token) []Utterance {
	if len(tokens) == 0 {
		return nil
	}

	var utterances []Utterance
	var buf *openBuffer

	// Границы предыдущего токена: токен без таймстемпов наследует их,
	// чтобы порядок реплик оставался определённым
	var prevStartMs, prevEndMs int64

	flush := func() {
		if buf == nil || buf.wordCount == 0 {
			return
		}
		text := strings.TrimSpace(buf.text.String())
		if text == "" {
			return
		}
		utterances = append(utterances, Utterance{
			Speaker:    buf.speaker,
			Text:       text,
			StartMs:    buf.startMs,
			EndMs:      buf.endMs,
			Confidence: buf.confAcc / float64(buf.wordCount),
		})
	}

	for _, tok := range tokens {
		startMs, endMs := tok.StartMs, tok.EndMs
		if startMs == 0 && endMs == 0 && (prevStartMs != 0 || prevEndMs != 0) {
			startMs, endMs = prevStartMs, prevEndMs
		}
		prevStartMs, prevEndMs = startMs, endMs

		if tok.Kind == diarize.KindSpacing {
			// Разделитель не несёт спикера и не двигает границы
			if buf != nil {
				buf.text.WriteString(tok.Text)
			}
			continue
		}

		if buf != nil && tok.Speaker != buf.speaker {
			flush()
			buf = nil
		}

		if buf == nil {
			buf = &openBuffer{speaker: tok.Speaker, startMs: startMs, endMs: endMs}
		}

		buf.text.WriteString(tok.Text)
		buf.endMs = endMs
		buf.confAcc += tok.LogProb
		buf.wordCount++
	}

	flush()
	return utterances
}
