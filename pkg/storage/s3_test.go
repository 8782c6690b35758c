package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakeS3 struct {
	mu       sync.Mutex
	method   string
	path     string
	checksum string
	body     string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.method, f.path = r.Method, r.URL.Path
	f.checksum = r.Header.Get("X-Amz-Meta-Checksum")
	f.body = string(body)
	f.mu.Unlock()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func TestUploadFile(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "nightly.sql")
	if err := os.WriteFile(file, []byte("insert into t (a) values (1);\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	u, err := New(ctx, Config{
		Bucket:    "dumps",
		Prefix:    "/prod/",
		Region:    "eu-west-1",
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	obj, err := u.UploadFile(ctx, file, map[string]string{"checksum": "abc123"})
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if obj.Key != "prod/nightly.sql" || obj.Bucket != "dumps" || obj.Size != 30 {
		t.Errorf("Object = %+v", obj)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.method != http.MethodPut || fake.path != "/dumps/prod/nightly.sql" {
		t.Errorf("request = %s %s", fake.method, fake.path)
	}
	if fake.checksum != "abc123" {
		t.Errorf("metadata checksum = %q", fake.checksum)
	}
	if !strings.Contains(fake.body, "insert into t (a) values (1);") {
		t.Errorf("body = %q", fake.body)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Bucket: "b"}, false},
		{"no bucket", Config{}, true},
		{"half credentials", Config{Bucket: "b", AccessKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyAndContentType(t *testing.T) {
	u := &Uploader{cfg: Config{Prefix: "a/b/"}}
	if got := u.Key("x.csv"); got != "a/b/x.csv" {
		t.Errorf("Key() = %q", got)
	}
	u.cfg.Prefix = ""
	if got := u.Key("x.csv"); got != "x.csv" {
		t.Errorf("Key() without prefix = %q", got)
	}

	for name, want := range map[string]string{
		"dump.sql.gz": "application/gzip",
		"dump.ZST":    "application/zstd",
		"out.xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"blob.bin":    "application/octet-stream",
	} {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
