package audio

import (
	"bytes"
	"fmt"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// EncodeMP3 кодирует буфер сегмента в MP3 через shine-mp3 (чистый Go, без FFmpeg).
// Используется для архивной выгрузки аудио сегмента.
func EncodeMP3(buf *Buffer) ([]byte, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}

	const channels = 1
	encoder := mp3.NewEncoder(buf.SampleRate, channels)

	// Конвертируем float32 в int16
	pcm := make([]int16, 0, len(buf.Samples))
	for _, s := range buf.Samples {
		// Clamp
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		pcm = append(pcm, int16(s*32767))
	}

	// Shine кодирует блоками по 1152 сэмпла на канал, дополняем нулями до границы блока
	const blockSize = 1152 * channels
	for len(pcm)%blockSize != 0 {
		pcm = append(pcm, 0)
	}

	var out bytes.Buffer
	encoder.Write(&out, pcm)
	if out.Len() == 0 {
		return nil, fmt.Errorf("mp3 encode produced no data")
	}
	return out.Bytes(), nil
}
