// File: pkg/processors/checksum.go

package processors

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// ChecksumWriter считает xxh3 (64-bit) и размер записанных байтов,
// передавая их дальше в w
type ChecksumWriter struct {
	w    io.Writer
	h    *xxh3.Hasher
	size int64
}

// NewChecksumWriter создает писатель; w может быть nil (только подсчет)
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	if w == nil {
		w = io.Discard
	}
	return &ChecksumWriter{w: w, h: xxh3.New()}
}

// Write реализует io.Writer
func (c *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.h.Write(p[:n])
	c.size += int64(n)
	return n, err
}

// Sum hex-представление хеша записанных данных
func (c *ChecksumWriter) Sum() string {
	return hex.EncodeToString(uint64ToBytes(c.h.Sum64()))
}

// Size количество записанных байтов
func (c *ChecksumWriter) Size() int64 {
	return c.size
}

// uint64ToBytes конвертирует uint64 в байтовый массив (big-endian).
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// ComputeChecksum вычисляет xxh3 хеш данных и возвращает hex-encoded строку.
func ComputeChecksum(data []byte) string {
	return hex.EncodeToString(uint64ToBytes(xxh3.Hash(data)))
}

// ChecksumFile считает xxh3 хеш файла потоково
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cw := NewChecksumWriter(nil)
	if _, err := io.Copy(cw, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return cw.Sum(), nil
}

// ValidateChecksum проверяет соответствие данных ожидаемому хешу.
// Возвращает ошибку если хеш не совпадает.
func ValidateChecksum(data []byte, expectedHash string) error {
	actual := ComputeChecksum(data)
	if actual != expectedHash {
		return fmt.Errorf(
			"checksum validation failed: expected %s, got %s",
			expectedHash, actual,
		)
	}
	return nil
}
