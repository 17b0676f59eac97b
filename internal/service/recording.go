package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"talkbridge/audio"
	"talkbridge/diarize"
	"talkbridge/session"
	"talkbridge/storage"
)

// RecordingService владеет устройством захвата на время сессии и нарезает
// запись на сегменты фиксированной длины.
//
// Захват сегмента N+1 идёт параллельно с финализацией сегмента N
// (диаризация -> сборка реплик -> роли -> счётчики). Единственная
// точка сериализации - передача устройства: стоп текущего дубля и
// старт следующего происходят в одном действии под мьютексом.
type RecordingService struct {
	Device   audio.Device
	Provider diarize.Provider
	Uploader storage.Uploader
	Store    storage.Store
	Config   session.Config

	// Callbacks
	OnSegmentReady    func(segmentNumber int, seg *session.Segment)
	OnSessionComplete func(snapshot session.Snapshot)

	mu         sync.Mutex
	tracker    *session.Tracker
	classifier session.Classifier
	handle     audio.Handle
	active     bool // liveness flag: проверяется перед стартом сегмента и перед капами
	segments   []*session.Segment
	current    *session.Segment
	capturedMs int64 // суммарная длительность записанных сегментов (для капа сессии)
	stopChan   chan struct{}
	wg         *sync.WaitGroup // задачи финализации текущей сессии
}

// NewRecordingService создаёт сервис записи
func NewRecordingService(device audio.Device, provider diarize.Provider, uploader storage.Uploader, store storage.Store, cfg session.Config) *RecordingService {
	if cfg.SegmentWindow <= 0 {
		cfg.SegmentWindow = session.DefaultConfig().SegmentWindow
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = session.DefaultConfig().MaxSegments
	}
	if cfg.MaxSessionTime <= 0 {
		cfg.MaxSessionTime = session.DefaultConfig().MaxSessionTime
	}
	return &RecordingService{
		Device:   device,
		Provider: provider,
		Uploader: uploader,
		Store:    store,
		Config:   cfg,
	}
}

// StartSession захватывает устройство и начинает запись сегмента 1.
// Недоступность устройства фатальна: сессия не стартует.
func (s *RecordingService) StartSession() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return "", fmt.Errorf("%w: recording in progress", session.ErrSessionAlreadyActive)
	}

	handle, err := s.Device.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrDeviceUnavailable, err)
	}

	tracker := session.NewTracker()
	sessionID, err := tracker.Start()
	if err != nil {
		handle.Close()
		return "", err
	}

	if s.Config.HeuristicRoles {
		s.classifier = session.NewHeuristicClassifier()
		log.Println("Role classification: heuristic fallback (no diarization)")
	} else {
		s.classifier = session.NewDiarizationClassifier()
	}

	s.tracker = tracker
	s.handle = handle
	s.active = true
	s.segments = nil
	s.current = nil
	s.capturedMs = 0
	s.stopChan = make(chan struct{})
	s.wg = &sync.WaitGroup{}

	s.startSegmentLocked(1)
	if !s.active {
		// Start первого дубля упал: captureFailedLocked уже свернул сессию
		return "", fmt.Errorf("%w: segment 1 did not start", session.ErrCaptureInterrupted)
	}
	go s.run(s.stopChan)

	log.Printf("Session started: %s (window=%v, maxSegments=%d, maxSession=%v)",
		sessionID, s.Config.SegmentWindow, s.Config.MaxSegments, s.Config.MaxSessionTime)
	return sessionID, nil
}

// StopSession останавливает запись по команде пользователя.
// Короткий последний сегмент финализируется, не выбрасывается.
func (s *RecordingService) StopSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return fmt.Errorf("%w: no recording in progress", session.ErrSessionNotActive)
	}

	log.Printf("Session stopping: %s (user)", s.tracker.SessionID())
	s.shutdownLocked(session.EndReasonUser, true)
	return nil
}

// run цикл ротации: таймер сегмента и таймер максимальной длительности сессии
func (s *RecordingService) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.Config.SegmentWindow)
	defer ticker.Stop()
	maxTimer := time.NewTimer(s.Config.MaxSessionTime)
	defer maxTimer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.rotate()
		case <-maxTimer.C:
			s.timeout()
			return
		}
	}
}

// rotate завершает дубль текущего сегмента и в том же действии начинает
// следующий. Финализация завершённого сегмента уходит в отдельную горутину
// и старт следующего не блокирует.
func (s *RecordingService) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Таймер мог сработать перед самой остановкой
	if !s.active {
		return
	}

	buf, err := s.handle.Stop()
	seg := s.current
	if err != nil {
		s.captureFailedLocked(seg, err)
		return
	}

	seg.Status = session.SegmentFinalizing
	seg.DurationMs = buf.DurationMs()
	s.capturedMs += seg.DurationMs

	// Капы проверяются до старта нового сегмента: сегмент maxSegments+1
	// не стартует никогда
	next := seg.Number + 1
	switch {
	case next > s.Config.MaxSegments:
		log.Printf("Max segments reached (%d), ending session", s.Config.MaxSegments)
		s.scheduleFinalizeLocked(seg, buf)
		s.endLocked(session.EndReasonMaxSegments)
		return
	case time.Duration(s.capturedMs)*time.Millisecond >= s.Config.MaxSessionTime:
		log.Printf("Max session duration reached (%v), ending session", s.Config.MaxSessionTime)
		s.scheduleFinalizeLocked(seg, buf)
		s.endLocked(session.EndReasonTimeout)
		return
	}

	// Финализация ставится до старта следующего сегмента: если Start
	// упадёт и сессия завершится, завершённый сегмент уже учтён в wg
	// и его реплики доедут до трекера
	s.scheduleFinalizeLocked(seg, buf)
	s.startSegmentLocked(next)
}

// timeout сработал таймер максимальной длительности сессии
func (s *RecordingService) timeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	log.Printf("Session timeout (%v), ending session", s.Config.MaxSessionTime)
	s.shutdownLocked(session.EndReasonTimeout, false)
}

// startSegmentLocked создаёт сегмент под номером n и начинает новый дубль
func (s *RecordingService) startSegmentLocked(n int) {
	seg := &session.Segment{
		Number:    n,
		SessionID: s.tracker.SessionID(),
		Status:    session.SegmentRecording,
		CreatedAt: time.Now(),
	}
	s.segments = append(s.segments, seg)
	s.current = seg

	if err := s.handle.Start(); err != nil {
		s.captureFailedLocked(seg, err)
		return
	}
	log.Printf("Segment %d recording", n)
}

// shutdownLocked общий путь завершения: остановка дубля, финализация
// последнего сегмента, освобождение устройства.
// closeStop=true когда вызов пришёл не из run-цикла.
func (s *RecordingService) shutdownLocked(reason session.EndReason, closeStop bool) {
	// Флаг опускается до финализации: колбэки и таймеры, успевшие
	// сработать, нового сегмента уже не запустят
	s.active = false
	if closeStop {
		close(s.stopChan)
	}

	buf, err := s.handle.Stop()
	seg := s.current
	s.current = nil

	if err != nil {
		seg.Status = session.SegmentFailed
		seg.Error = err.Error()
		log.Printf("%v: segment %d: %v", session.ErrCaptureInterrupted, seg.Number, err)
		go s.notifySegment(seg)
	} else {
		seg.Status = session.SegmentFinalizing
		seg.DurationMs = buf.DurationMs()
		s.capturedMs += seg.DurationMs
		s.scheduleFinalizeLocked(seg, buf)
	}

	s.releaseLocked(reason)
}

// endLocked завершение из rotate: дубль уже остановлен и отдан в финализацию
func (s *RecordingService) endLocked(reason session.EndReason) {
	s.active = false
	close(s.stopChan)
	s.releaseLocked(reason)
}

// captureFailedLocked фатальный обрыв захвата посреди сессии
func (s *RecordingService) captureFailedLocked(seg *session.Segment, err error) {
	seg.Status = session.SegmentFailed
	seg.Error = err.Error()
	log.Printf("%v: segment %d: %v", session.ErrCaptureInterrupted, seg.Number, err)

	s.active = false
	close(s.stopChan)
	go s.notifySegment(seg)
	s.releaseLocked(session.EndReasonCaptureError)
}

// releaseLocked освобождает устройство и запускает ожидание финализаций.
// Задачи финализации добегают до конца, их никто не прерывает.
func (s *RecordingService) releaseLocked(reason session.EndReason) {
	s.handle.Close()
	s.handle = nil
	s.tracker.MarkEnding()

	wg := s.wg
	tracker := s.tracker
	go func() {
		wg.Wait()

		snapshot, err := tracker.End(reason)
		if err != nil {
			log.Printf("Failed to end session: %v", err)
			return
		}
		if s.Store != nil {
			if err := s.Store.SaveSnapshot(snapshot); err != nil {
				log.Printf("Failed to save session snapshot: %v", err)
			}
		}
		log.Printf("Session complete: %s (turns=%d, duration=%dms, reason=%s)",
			snapshot.SessionID, snapshot.Turns, snapshot.TotalDurationMs, snapshot.Reason)
		if s.OnSessionComplete != nil {
			s.OnSessionComplete(snapshot)
		}
	}()
}

// notifySegment отдаёт финализированный сегмент наружу
func (s *RecordingService) notifySegment(seg *session.Segment) {
	if s.OnSegmentReady != nil {
		s.OnSegmentReady(seg.Number, seg)
	}
}

// IsRecording возвращает true пока идёт запись
func (s *RecordingService) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CurrentSegmentNumber возвращает номер записываемого сегмента (0 вне сессии)
func (s *RecordingService) CurrentSegmentNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.Number
}

// Stats возвращает счётчики текущей (или последней) сессии
func (s *RecordingService) Stats() session.Stats {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	if tracker == nil {
		return session.Stats{}
	}
	return tracker.Stats()
}

// Segments возвращает копии сегментов текущей (или последней) сессии
func (s *RecordingService) Segments() []session.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		out = append(out, *seg)
	}
	return out
}
