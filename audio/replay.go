package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// FileDevice проигрывает записанный MP3 как устройство захвата.
// Используется офлайн прогонами (cmd/replay): тот же пайплайн сегментов,
// но источник - файл, а не микрофон.
type FileDevice struct {
	Path string
}

// NewFileDevice создаёт файловое устройство
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{Path: path}
}

// Open декодирует весь файл в моно PCM на частоте SampleRate.
// go-mp3 не поддерживает seek, поэтому читаем целиком.
func (d *FileDevice) Open() (Handle, error) {
	file, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// go-mp3 всегда декодирует в signed 16-bit stereo
	pcmData := make([]byte, decoder.Length())
	n, err := io.ReadFull(decoder, pcmData)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}
	pcmData = pcmData[:n]

	numSamples := n / 4 // 2 bytes per sample * 2 channels
	mono := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcmData[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[i*4+2:]))
		mono[i] = (float32(left)/32768.0 + float32(right)/32768.0) / 2.0
	}

	if decoder.SampleRate() != SampleRate {
		mono = resampleLinear(mono, decoder.SampleRate(), SampleRate)
	}

	log.Printf("Replay source loaded: %s (%.1f sec)", d.Path,
		float64(len(mono))/float64(SampleRate))

	return &fileHandle{samples: mono}, nil
}

// fileHandle выдаёт дубли файла по реальному прошедшему времени,
// как это делал бы микрофон
type fileHandle struct {
	mu      sync.Mutex
	samples []float32
	cursor  int
	started time.Time
	armed   bool
	closed  bool
}

func (h *fileHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("replay handle closed")
	}
	h.started = time.Now()
	h.armed = true
	return nil
}

func (h *fileHandle) Stop() (*Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("replay handle closed")
	}
	if !h.armed {
		return &Buffer{SampleRate: SampleRate}, nil
	}
	h.armed = false

	elapsed := time.Since(h.started)
	n := int(elapsed.Seconds() * float64(SampleRate))
	if n > len(h.samples)-h.cursor {
		n = len(h.samples) - h.cursor
	}

	take := make([]float32, n)
	copy(take, h.samples[h.cursor:h.cursor+n])
	h.cursor += n

	return &Buffer{Samples: take, SampleRate: SampleRate}, nil
}

func (h *fileHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.armed = false
	return nil
}

// resampleLinear выполняет линейную интерполяцию для ресемплинга
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}
