package audio

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// SampleRate частота дискретизации записи.
// 16kHz - нативная частота сервиса диаризации, ресемплинг не нужен.
const SampleRate = 16000

// Buffer сырое аудио одного сегмента
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration возвращает длительность буфера
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DurationMs возвращает длительность буфера в миллисекундах
func (b *Buffer) DurationMs() int64 {
	return b.Duration().Milliseconds()
}

// Device источник аудио. Единственная реализация для продакшена - malgo,
// файловая реализация в replay.go используется для офлайн прогонов.
type Device interface {
	// Open захватывает устройство. Устройство монопольное:
	// одна активная сессия держит один handle.
	Open() (Handle, error)
}

// Handle открытое устройство захвата. Запись между Start и Stop
// накапливается в один буфер (один сегмент = один дубль).
type Handle interface {
	// Start начинает накопление нового дубля
	Start() error
	// Stop завершает дубль и возвращает накопленное аудио.
	// Захват при этом не освобождается: следующий Start продолжает
	// писать с того же устройства без паузы.
	Stop() (*Buffer, error)
	// Close освобождает устройство
	Close() error
}

// MalgoDevice устройство захвата микрофона через malgo (miniaudio)
type MalgoDevice struct {
	DeviceName string // пустая строка = устройство по умолчанию
}

// NewMalgoDevice создаёт устройство захвата
func NewMalgoDevice(deviceName string) *MalgoDevice {
	return &MalgoDevice{DeviceName: deviceName}
}

// Open инициализирует malgo контекст и стартует устройство.
// Данные из callback пишутся в текущий дубль только между Start и Stop.
func (d *MalgoDevice) Open() (Handle, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	h := &malgoHandle{ctx: ctx}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	if d.DeviceName != "" {
		id, err := findCaptureDevice(ctx, d.DeviceName)
		if err != nil {
			ctx.Uninit()
			ctx.Free()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		sampleCount := int(framecount)
		if len(pInputSamples) != sampleCount*4 {
			return
		}

		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := uint32(pInputSamples[i*4]) | uint32(pInputSamples[i*4+1])<<8 |
				uint32(pInputSamples[i*4+2])<<16 | uint32(pInputSamples[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}

		h.mu.Lock()
		if h.armed {
			h.take = append(h.take, samples...)
		}
		h.mu.Unlock()
	}

	h.device, err = malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to init capture device: %w", err)
	}

	if err := h.device.Start(); err != nil {
		h.device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	log.Println("Microphone capture started")
	return h, nil
}

// findCaptureDevice ищет устройство захвата по имени (частичное совпадение)
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	nameLower := strings.ToLower(name)
	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.Name()), nameLower) {
			id := dev.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("capture device not found: %s", name)
}

type malgoHandle struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	armed  bool
	take   []float32
	closed bool
}

func (h *malgoHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("capture handle closed")
	}
	h.take = make([]float32, 0, SampleRate*35)
	h.armed = true
	return nil
}

func (h *malgoHandle) Stop() (*Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("capture handle closed")
	}
	h.armed = false
	buf := &Buffer{Samples: h.take, SampleRate: SampleRate}
	h.take = nil
	return buf, nil
}

func (h *malgoHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.armed = false
	h.mu.Unlock()

	if h.device != nil {
		h.device.Uninit()
		h.device = nil
	}
	if h.ctx != nil {
		h.ctx.Uninit()
		h.ctx.Free()
		h.ctx = nil
	}

	log.Println("Audio capture stopped")
	return nil
}
