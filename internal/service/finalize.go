package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"talkbridge/audio"
	"talkbridge/session"
)

// scheduleFinalizeLocked отправляет завершённый сегмент в пайплайн
// финализации. Трекер и классификатор фиксируются на момент постановки:
// задача может добегать уже после старта следующей сессии.
func (s *RecordingService) scheduleFinalizeLocked(seg *session.Segment, buf *audio.Buffer) {
	tracker := s.tracker
	classifier := s.classifier
	wg := s.wg

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.finalize(tracker, classifier, seg, buf)
	}()
}

// finalize пайплайн одного сегмента: выгрузка аудио -> диаризация ->
// сборка реплик -> роли -> счётчики -> персистентность.
//
// Ошибки провайдера и выгрузки гасятся на границе сегмента: сегмент
// помечается failed, соседние сегменты и сессия продолжаются.
func (s *RecordingService) finalize(tracker *session.Tracker, classifier session.Classifier, seg *session.Segment, buf *audio.Buffer) {
	ctx := context.Background()
	log.Printf("Finalizing segment %d (%.1f sec)", seg.Number, buf.Duration().Seconds())

	// Пустой дубль (остановка сразу после ротации) - валидный сегмент без речи
	if len(buf.Samples) == 0 {
		s.markProcessed(seg, nil)
		return
	}

	if s.Uploader != nil {
		data, err := audio.EncodeMP3(buf)
		if err != nil {
			s.markFailed(seg, fmt.Errorf("encode segment audio: %w", err))
			return
		}
		path := fmt.Sprintf("%s/segments/%03d.mp3", seg.SessionID, seg.Number)
		url, err := s.Uploader.Upload(ctx, data, path)
		if err != nil {
			s.markFailed(seg, err)
			return
		}
		s.mu.Lock()
		seg.AudioURL = url
		s.mu.Unlock()
	}

	tokens, err := s.Provider.Transcribe(ctx, buf)
	if err != nil {
		s.markFailed(seg, err)
		return
	}

	// Пустой поток токенов - сегмент без речи, это не ошибка
	utterances := session.Compile(tokens)
	classifier.Observe(utterances)

	turns := make([]session.Turn, 0, len(utterances))
	for _, u := range utterances {
		turn := session.Turn{
			ID:            uuid.New().String(),
			SegmentNumber: seg.Number,
			Speaker:       u.Speaker,
			Role:          classifier.Assign(u),
			Text:          u.Text,
			StartMs:       u.StartMs,
			EndMs:         u.EndMs,
			Confidence:    u.Confidence,
		}
		if err := tracker.RecordTurn(turn); err != nil {
			log.Printf("Failed to record turn (segment %d): %v", seg.Number, err)
			continue
		}
		turns = append(turns, turn)
	}

	s.markProcessed(seg, turns)
}

// markProcessed помечает сегмент обработанным и сохраняет результат
func (s *RecordingService) markProcessed(seg *session.Segment, turns []session.Turn) {
	s.mu.Lock()
	seg.Status = session.SegmentProcessed
	seg.Turns = turns
	s.mu.Unlock()

	if s.Store != nil {
		// Fire-and-forget: ошибки персистентности не валят сессию
		if err := s.Store.SaveSegment(seg); err != nil {
			log.Printf("Failed to save segment %d: %v", seg.Number, err)
		}
		if err := s.Store.SaveTurns(seg.SessionID, turns); err != nil {
			log.Printf("Failed to save turns (segment %d): %v", seg.Number, err)
		}
	}

	log.Printf("Segment %d processed: %d turns", seg.Number, len(turns))
	s.notifySegment(seg)
}

// markFailed помечает сегмент проваленным. Сессия продолжается:
// проваленный сегмент просто даёт ноль реплик.
func (s *RecordingService) markFailed(seg *session.Segment, err error) {
	s.mu.Lock()
	seg.Status = session.SegmentFailed
	seg.Error = err.Error()
	s.mu.Unlock()

	log.Printf("Segment %d failed: %v", seg.Number, err)

	if s.Store != nil {
		if err := s.Store.SaveSegment(seg); err != nil {
			log.Printf("Failed to save segment %d: %v", seg.Number, err)
		}
	}
	s.notifySegment(seg)
}
