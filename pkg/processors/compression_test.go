package processors

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// TestCompressionRoundTrip проверяет запись и автоопределение при чтении
func TestCompressionRoundTrip(t *testing.T) {
	payload := strings.Repeat("insert into users (id,name) values (1,'x');\n", 500)

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(c)+"_", func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, c, 0)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if _, err := io.WriteString(w, payload); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			if c != CompressionNone && buf.Len() >= len(payload) {
				t.Errorf("compressed size %d not smaller than %d", buf.Len(), len(payload))
			}

			r, detected, err := NewReader(&buf)
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			defer r.Close()
			if detected != c {
				t.Errorf("detected %q, want %q", detected, c)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != payload {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestNewReaderShortInput(t *testing.T) {
	r, c, err := NewReader(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if c != CompressionNone {
		t.Errorf("expected no compression, got %q", c)
	}
	got, _ := io.ReadAll(r)
	if string(got) != "x" {
		t.Errorf("got %q", got)
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"GZIP", CompressionGzip, false},
		{"gz", CompressionGzip, false},
		{"zst", CompressionZstd, false},
		{"lz4", CompressionNone, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFromFilename(t *testing.T) {
	if FromFilename("dump.sql.gz") != CompressionGzip {
		t.Error("gz not detected")
	}
	if FromFilename("dump.sql.zst") != CompressionZstd {
		t.Error("zst not detected")
	}
	if FromFilename("dump.sql") != CompressionNone {
		t.Error("plain file detected as compressed")
	}
	if CompressionZstd.Extension() != ".zst" || CompressionNone.Extension() != "" {
		t.Error("unexpected extensions")
	}
}
