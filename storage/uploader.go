package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUploadFailed выгрузка аудио не удалась.
// Не фатально для сессии: сегмент помечается failed, запись продолжается.
var ErrUploadFailed = errors.New("upload failed")

// Uploader выгружает аудио сегмента в блоб-хранилище
type Uploader interface {
	// Upload сохраняет данные по относительному пути и возвращает URL
	Upload(ctx context.Context, data []byte, path string) (string, error)
}

// LocalUploader пишет блобы на диск под dataDir.
// Продакшен подменяет его облачной реализацией через тот же интерфейс.
type LocalUploader struct {
	dataDir string
}

// NewLocalUploader создаёт локальное блоб-хранилище
func NewLocalUploader(dataDir string) *LocalUploader {
	return &LocalUploader{dataDir: dataDir}
}

// Upload записывает данные в файл и возвращает file:// URL
func (u *LocalUploader) Upload(ctx context.Context, data []byte, path string) (string, error) {
	full := filepath.Join(u.dataDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return "file://" + full, nil
}
