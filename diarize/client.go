package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"talkbridge/audio"
)

// HTTPProvider клиент сетевого сервиса диаризации.
// Сегмент уходит как WAV (multipart/form-data), обратно приходит JSON с токенами.
type HTTPProvider struct {
	baseURL string
	token   string
	c       *http.Client
}

// NewHTTPProvider создаёт клиент диаризации.
// token опционален, добавляется как Bearer если задан.
func NewHTTPProvider(baseURL, token string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		c:       &http.Client{Timeout: 120 * time.Second},
	}
}

type tokenResponse struct {
	Tokens []Token `json:"tokens"`
}

// Transcribe отправляет аудио сегмента на /diarize и декодирует поток токенов
func (p *HTTPProvider) Transcribe(ctx context.Context, buf *audio.Buffer) ([]Token, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", "segment.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrDiarizationFailed, err)
	}
	if _, err := fw.Write(audio.EncodeWAV(buf)); err != nil {
		return nil, fmt.Errorf("%w: write wav: %v", ErrDiarizationFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart: %v", ErrDiarizationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/diarize", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiarizationFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiarizationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return nil, fmt.Errorf("%w: %s: %s", ErrDiarizationFailed, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDiarizationFailed, err)
	}
	return out.Tokens, nil
}
