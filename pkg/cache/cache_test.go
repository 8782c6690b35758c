package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
)

func sampleResult() *rowset.Result {
	ts := time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)
	return &rowset.Result{
		Columns: []string{"id", "name", "price", "active", "created", "blob", "note"},
		Rows: []*rowset.Row{
			rowset.RowOf("id", int64(1), "name", "alpha", "price", 12.5, "active", true,
				"created", ts, "blob", []byte{0, 1, 2}, "note", nil),
			rowset.RowOf("id", int64(2), "name", "beta", "price", 0.0, "active", false,
				"created", ts.Add(time.Hour), "blob", []byte{}, "note", "x"),
		},
		Truncated: true,
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string](time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("entry must expire after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry must be removed, len=%d", c.Len())
	}
}

func TestTTLDeleteAndClear(t *testing.T) {
	c := NewTTL[int](0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry still present")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Clear() left %d entries", c.Len())
	}
}

func TestCodecPreservesTypes(t *testing.T) {
	src := sampleResult()
	payload, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !got.Truncated || len(got.Rows) != 2 || len(got.Columns) != 7 {
		t.Fatalf("unexpected shape: %+v", got)
	}
	row := got.Rows[0]
	if v, ok := row.Value("id").(int64); !ok || v != 1 {
		t.Errorf("id = %#v", row.Value("id"))
	}
	if v, ok := row.Value("price").(float64); !ok || v != 12.5 {
		t.Errorf("price = %#v", row.Value("price"))
	}
	if v, ok := row.Value("active").(bool); !ok || !v {
		t.Errorf("active = %#v", row.Value("active"))
	}
	if v, ok := row.Value("created").(time.Time); !ok || !v.Equal(time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)) {
		t.Errorf("created = %#v", row.Value("created"))
	}
	if v, ok := row.Value("blob").([]byte); !ok || !bytes.Equal(v, []byte{0, 1, 2}) {
		t.Errorf("blob = %#v", row.Value("blob"))
	}
	if !row.Has("note") || row.Value("note") != nil {
		t.Errorf("note must be present and nil")
	}
	if keys := row.Keys(); keys[0] != "id" || keys[6] != "note" {
		t.Errorf("column order lost: %v", keys)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"columns":["a"],"rows":[[{"k":"a","t":"?","v":"1"}]]}`))
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	if _, ok, _ := m.Get(ctx, "select 1"); ok {
		t.Fatal("empty cache must miss")
	}
	res := sampleResult()
	if err := m.Put(ctx, "select 1", res); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Get(ctx, "select 1")
	if err != nil || !ok || got != res {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	m.Delete(ctx, "select 1")
	if _, ok, _ := m.Get(ctx, "select 1"); ok {
		t.Error("deleted entry still present")
	}
}

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedis(rdb, "", ttl), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)

	if _, ok, err := c.Get(ctx, "select * from t"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "select * from t", sampleResult()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 || len(keys[0]) != len(DefaultPrefix)+32 {
		t.Fatalf("unexpected redis keys %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	got, ok, err := c.Get(ctx, "select * from t")
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if got.Len() != 2 || got.Rows[1].Value("name") != "beta" {
		t.Errorf("unexpected result %+v", got.Rows[1].Map())
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "select * from t"); ok {
		t.Error("entry must expire in redis")
	}
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := DialRedis(context.Background(), RedisOptions{Address: mr.Addr()})
	if err != nil {
		t.Fatalf("DialRedis() error = %v", err)
	}
	defer c.Close()
	if c.prefix != DefaultPrefix || c.ttl != DefaultTTL {
		t.Errorf("defaults not applied: %q %v", c.prefix, c.ttl)
	}
}
