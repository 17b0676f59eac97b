package session

import (
	"strings"
	"testing"

	"talkbridge/diarize"
)

func word(speaker, text string, startMs, endMs int64, logProb float64) diarize.Token {
	return diarize.Token{Speaker: speaker, Text: text, Kind: diarize.KindWord, StartMs: startMs, EndMs: endMs, LogProb: logProb}
}

func spacing(text string) diarize.Token {
	return diarize.Token{Text: text, Kind: diarize.KindSpacing}
}

// TestCompile_SpeakerBoundary проверяет базовый сценарий смены спикера:
// [(A,"Hi"),(space),(A,"there"),(B,"Hello")] -> две реплики
func TestCompile_SpeakerBoundary(t *testing.T) {
	tokens := []diarize.Token{
		word("A", "Hi", 0, 300, -0.2),
		spacing(" "),
		word("A", "there", 400, 800, -0.4),
		word("B", "Hello", 900, 1400, -0.1),
	}

	utts := Compile(tokens)

	if len(utts) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(utts))
	}
	if utts[0].Speaker != "A" || utts[0].Text != "Hi there" {
		t.Errorf("First utterance: got %s / %q, expected A / \"Hi there\"", utts[0].Speaker, utts[0].Text)
	}
	if utts[1].Speaker != "B" || utts[1].Text != "Hello" {
		t.Errorf("Second utterance: got %s / %q, expected B / \"Hello\"", utts[1].Speaker, utts[1].Text)
	}
	if utts[0].StartMs != 0 || utts[0].EndMs != 800 {
		t.Errorf("First utterance boundaries: got [%d-%d], expected [0-800]", utts[0].StartMs, utts[0].EndMs)
	}
	// Средний logProb по word-токенам буфера
	if got := utts[0].Confidence; got < -0.31 || got > -0.29 {
		t.Errorf("First utterance confidence: got %f, expected ~-0.3", got)
	}
}

// TestCompile_Empty пустой вход даёт пустой выход
func TestCompile_Empty(t *testing.T) {
	if utts := Compile(nil); len(utts) != 0 {
		t.Errorf("Expected no utterances, got %d", len(utts))
	}
}

// TestCompile_SingleSpeaker все токены одного спикера дают одну реплику
func TestCompile_SingleSpeaker(t *testing.T) {
	tokens := []diarize.Token{
		word("A", "Я", 0, 200, -0.1),
		spacing(" "),
		word("A", "помню", 250, 700, -0.2),
		spacing(" "),
		word("A", "это", 750, 1000, -0.3),
	}

	utts := Compile(tokens)

	if len(utts) != 1 {
		t.Fatalf("Expected 1 utterance, got %d", len(utts))
	}
	if utts[0].Text != "Я помню это" {
		t.Errorf("Text: got %q", utts[0].Text)
	}
	if utts[0].EndMs != 1000 {
		t.Errorf("EndMs: got %d, expected 1000", utts[0].EndMs)
	}
}

// TestCompile_FinalFlush последний буфер обязан сбрасываться: без этого
// финальные слова последнего спикера молча теряются
func TestCompile_FinalFlush(t *testing.T) {
	tokens := []diarize.Token{
		word("A", "Вопрос", 0, 500, -0.1),
		word("B", "Ответ", 600, 1200, -0.2),
	}

	utts := Compile(tokens)

	if len(utts) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(utts))
	}
	if utts[1].Speaker != "B" || utts[1].Text != "Ответ" {
		t.Errorf("Final utterance lost: got %+v", utts)
	}
}

// TestCompile_SpacingOnly поток из одних spacing-токенов не порождает реплик
func TestCompile_SpacingOnly(t *testing.T) {
	tokens := []diarize.Token{spacing(" "), spacing("\n"), spacing(" ")}

	if utts := Compile(tokens); len(utts) != 0 {
		t.Errorf("Expected no utterances from spacing-only stream, got %d", len(utts))
	}
}

// TestCompile_MissingTimestamps токен без таймстемпов наследует границы
// предыдущего, порядок реплик остаётся определённым
func TestCompile_MissingTimestamps(t *testing.T) {
	tokens := []diarize.Token{
		word("A", "до", 100, 400, -0.1),
		word("A", "свидания", 0, 0, -0.1), // таймстемпы потеряны провайдером
		word("B", "пока", 900, 1200, -0.1),
	}

	utts := Compile(tokens)

	if len(utts) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(utts))
	}
	if utts[0].EndMs != 400 {
		t.Errorf("Missing timestamps should inherit previous boundary, got EndMs=%d", utts[0].EndMs)
	}
	if utts[0].StartMs > utts[1].StartMs {
		t.Errorf("Utterances out of order: %d > %d", utts[0].StartMs, utts[1].StartMs)
	}
}

// TestCompile_WordCoverage каждый word-токен попадает ровно в одну реплику,
// порядок сохраняется, пустых реплик нет
func TestCompile_WordCoverage(t *testing.T) {
	tokens := []diarize.Token{
		word("A", "раз", 0, 100, -0.1),
		spacing(" "),
		word("B", "два", 150, 250, -0.2),
		spacing(" "),
		word("B", "три", 300, 400, -0.3),
		word("A", "четыре", 450, 600, -0.4),
		spacing(" "),
		word("C", "пять", 650, 800, -0.5),
	}

	utts := Compile(tokens)

	var wordCount int
	var prevStart int64 = -1
	for _, u := range utts {
		if strings.TrimSpace(u.Text) == "" {
			t.Errorf("Empty-text utterance emitted: %+v", u)
		}
		if u.StartMs < prevStart {
			t.Errorf("Temporal order violated: %d after %d", u.StartMs, prevStart)
		}
		prevStart = u.StartMs
		wordCount += len(strings.Fields(u.Text))
	}

	if wordCount != 5 {
		t.Errorf("Expected 5 words covered exactly once, got %d", wordCount)
	}
	if len(utts) != 4 {
		t.Errorf("Expected 4 utterances (A,B,A,C), got %d", len(utts))
	}
}

// TestCompile_DiscardsWhitespacePadding реплика с текстом из одних пробелов
// после трима не эмитится
func TestCompile_DiscardsWhitespacePadding(t *testing.T) {
	tokens := []diarize.Token{
		word("A", " ", 0, 100, -0.1), // провайдер отдал пробел как word
		word("B", "да", 200, 300, -0.2),
	}

	utts := Compile(tokens)

	if len(utts) != 1 {
		t.Fatalf("Expected 1 utterance, got %d", len(utts))
	}
	if utts[0].Speaker != "B" {
		t.Errorf("Expected only speaker B, got %s", utts[0].Speaker)
	}
}
