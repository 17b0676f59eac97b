// Офлайн прогон: записанный MP3 проходит через тот же пайплайн сегментов,
// что и живой микрофон. Удобно для проверки диаризации и ролей на
// реальных разговорах без устройства захвата.
package main

import (
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"talkbridge/audio"
	"talkbridge/diarize"
	"talkbridge/internal/service"
	"talkbridge/session"
	"talkbridge/storage"
)

func main() {
	input := flag.String("input", "", "Path to MP3 recording")
	dataDir := flag.String("data", "data/replay", "Directory for session data")
	diarizerURL := flag.String("diarizer", os.Getenv("DIARIZER_URL"), "Diarization service URL")
	segmentWindow := flag.Duration("segment-window", 30*time.Second, "Segment length")
	flag.Parse()

	if *input == "" || *diarizerURL == "" {
		log.Fatal("usage: replay -input recording.mp3 -diarizer http://host:port")
	}

	store, err := storage.NewJSONStore(*dataDir)
	if err != nil {
		log.Fatalf("Failed to init store: %v", err)
	}

	recording := service.NewRecordingService(
		audio.NewFileDevice(*input),
		diarize.NewHTTPProvider(*diarizerURL, os.Getenv("DIARIZER_TOKEN")),
		storage.NewLocalUploader(*dataDir),
		store,
		session.Config{SegmentWindow: *segmentWindow},
	)

	var wg sync.WaitGroup
	wg.Add(1)

	recording.OnSegmentReady = func(n int, seg *session.Segment) {
		log.Printf("segment %d: status=%s turns=%d", n, seg.Status, len(seg.Turns))
		for _, turn := range seg.Turns {
			log.Printf("  [%s] %s: %s", turn.Role, turn.Speaker, turn.Text)
		}
	}
	recording.OnSessionComplete = func(snapshot session.Snapshot) {
		log.Printf("session %s complete: %d turns, %dms speech, reason=%s",
			snapshot.SessionID, snapshot.Turns, snapshot.TotalDurationMs, snapshot.Reason)
		wg.Done()
	}

	if _, err := recording.StartSession(); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	wg.Wait()
}
