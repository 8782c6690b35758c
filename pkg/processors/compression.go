// File: pkg/processors/compression.go

package processors

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression алгоритм сжатия потока
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ParseCompression разбирает имя алгоритма: "", "none", "gzip"/"gz", "zstd"/"zst"
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression: %s", name)
	}
}

// FromFilename определяет сжатие по расширению файла
func FromFilename(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// Extension расширение файла для алгоритма
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter оборачивает w сжимающим писателем.
// level: для gzip 1-9, для zstd 1 (самый быстрый) - 22; 0 означает уровень по умолчанию.
// Close писателя не закрывает w.
func NewWriter(w io.Writer, c Compression, level int) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	case CompressionZstd:
		if level == 0 {
			level = 3 // хороший баланс по умолчанию
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// ReaderBufferSize размер буфера чтения
const ReaderBufferSize = 32 * 1024

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader читает r через буфер ReaderBufferSize, определяя сжатие
// по магическим байтам (gzip, zstd). Несжатый поток отдается как есть.
func NewReader(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReaderSize(r, ReaderBufferSize)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, CompressionNone, fmt.Errorf("failed to read stream header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, CompressionGzip, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gr, CompressionGzip, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, CompressionZstd, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return zstdReadCloser{zr}, CompressionZstd, nil
	default:
		return io.NopCloser(br), CompressionNone, nil
	}
}
