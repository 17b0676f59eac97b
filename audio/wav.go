package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV кодирует буфер в WAV (PCM16 mono) для отправки провайдеру диаризации
func EncodeWAV(buf *Buffer) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)

	dataSize := uint32(len(buf.Samples) * bitsPerSample / 8)
	byteRate := buf.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var b bytes.Buffer
	b.Grow(44 + int(dataSize))

	// RIFF header
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")

	// fmt chunk
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))             // chunk size
	binary.Write(&b, binary.LittleEndian, uint16(1))              // PCM
	binary.Write(&b, binary.LittleEndian, uint16(channels))       // channels
	binary.Write(&b, binary.LittleEndian, uint32(buf.SampleRate)) // sample rate
	binary.Write(&b, binary.LittleEndian, uint32(byteRate))       // byte rate
	binary.Write(&b, binary.LittleEndian, uint16(blockAlign))     // block align
	binary.Write(&b, binary.LittleEndian, uint16(bitsPerSample))

	// data chunk
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, dataSize)

	for _, s := range buf.Samples {
		// Clamp
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.Write(&b, binary.LittleEndian, int16(s*32767))
	}

	return b.Bytes()
}
