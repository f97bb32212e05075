package main

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qianbin/typedkv/accessor"
	"github.com/qianbin/typedkv/kv"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	store := kv.NewInMemory(time.Minute)
	t.Cleanup(func() { store.Close() })

	ts := httptest.NewServer(newServer(store, accessor.Default, zerolog.Nop()).routes())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, string) {
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func decode(t *testing.T, body string) map[string]float64 {
	var m map[string]float64
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("bad response %q: %v", body, err)
	}
	return m
}

func TestPutGet(t *testing.T) {
	ts := newTestServer(t)

	if code, _ := do(t, ts, http.MethodGet, "/user:1", ""); code != http.StatusNoContent {
		t.Errorf("expected 204 for a missing key, found %d", code)
	}
	if code, _ := do(t, ts, http.MethodPut, "/user:1", `{"name":"a"}`); code != http.StatusOK {
		t.Fatalf("expected 200, found %d", code)
	}
	code, body := do(t, ts, http.MethodGet, "/user:1", "")
	if code != http.StatusOK || body != `{"name":"a"}` {
		t.Errorf("expected (200, {\"name\":\"a\"}), found (%d, %s)", code, body)
	}

	if code, _ := do(t, ts, http.MethodHead, "/user:1", ""); code != http.StatusOK {
		t.Errorf("expected 200, found %d", code)
	}
	if code, _ := do(t, ts, http.MethodDelete, "/user:1", ""); code != http.StatusNoContent {
		t.Errorf("expected 204, found %d", code)
	}
	if code, _ := do(t, ts, http.MethodHead, "/user:1", ""); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, found %d", code)
	}
}

func TestPutRejects(t *testing.T) {
	ts := newTestServer(t)

	for _, c := range []struct {
		path, body string
	}{
		{"/k", ""},
		{"/k", "null"},
		{"/k", "{broken"},
		{"/k?ttl=soon", "1"},
		{"/k?ttl=1s&unit=hours", "1"},
		{"/k?ttl=500ms", "1"},
		{"/k?nx=1", "1"},
	} {
		if code, body := do(t, ts, http.MethodPut, c.path, c.body); code != http.StatusBadRequest {
			t.Errorf("PUT %s %q: expected 400, found (%d, %s)", c.path, c.body, code, body)
		}
	}
}

func TestPutNX(t *testing.T) {
	ts := newTestServer(t)

	if code, _ := do(t, ts, http.MethodPut, "/lock?nx=1&ttl=10s", `"v1"`); code != http.StatusOK {
		t.Fatalf("expected 200, found %d", code)
	}
	if code, _ := do(t, ts, http.MethodPut, "/lock?nx=1&ttl=10s", `"v2"`); code != http.StatusConflict {
		t.Errorf("expected 409, found %d", code)
	}
	if _, body := do(t, ts, http.MethodGet, "/lock", ""); body != `"v1"` {
		t.Errorf("expected the first value to stand, found %s", body)
	}
}

func TestExpireAndTTL(t *testing.T) {
	ts := newTestServer(t)

	_, body := do(t, ts, http.MethodPost, "/missing/expire?ttl=60s", "")
	if m := decode(t, body); m["applied"] != 0 {
		t.Errorf("expected 0 for a missing key, found %v", m["applied"])
	}
	_, body = do(t, ts, http.MethodGet, "/missing/ttl", "")
	if m := decode(t, body); m["ttl"] != -2 {
		t.Errorf("expected -2, found %v", m["ttl"])
	}

	do(t, ts, http.MethodPut, "/session:x?ttl=30s", `"token"`)
	_, body = do(t, ts, http.MethodGet, "/session:x/ttl", "")
	if n := decode(t, body)["ttl"]; n <= 0 || n > 30 {
		t.Errorf("expected 0 < ttl <= 30, found %v", n)
	}

	_, body = do(t, ts, http.MethodPost, "/session:x/expire?ttl=1500ms&unit=ms", "")
	if m := decode(t, body); m["applied"] != 1500 {
		t.Errorf("expected 1500, found %v", m["applied"])
	}
	_, body = do(t, ts, http.MethodGet, "/session:x/ttl?unit=ms", "")
	if n := decode(t, body)["ttl"]; n <= 0 || n > 1500 {
		t.Errorf("expected 0 < pttl <= 1500, found %v", n)
	}
}

func TestCounters(t *testing.T) {
	ts := newTestServer(t)

	for _, c := range []struct {
		path string
		want float64
	}{
		{"/counter/incr", 1},
		{"/counter/incr?by=5", 6},
		{"/counter/decr", 5},
		{"/counter/decr?by=2", 3},
		{"/f/incrbyfloat?by=1.5", 1.5},
		{"/f/decrbyfloat", 0.5},
	} {
		code, body := do(t, ts, http.MethodPost, c.path, "")
		if code != http.StatusOK {
			t.Fatalf("%s: expected 200, found (%d, %s)", c.path, code, body)
		}
		if v := decode(t, body)["value"]; v != c.want {
			t.Errorf("%s: expected %v, found %v", c.path, c.want, v)
		}
	}

	do(t, ts, http.MethodPut, "/text", `"abc"`)
	if code, _ := do(t, ts, http.MethodPost, "/text/incr", ""); code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a store error, found %d", code)
	}
	if code, _ := do(t, ts, http.MethodPost, "/counter/incr?by=x", ""); code != http.StatusBadRequest {
		t.Errorf("expected 400, found %d", code)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("store: redis://localhost:6379/0\ncodec: msgpack\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != "redis://localhost:6379/0" || cfg.Codec != "msgpack" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Bind != ":5678" || cfg.LogLevel != "info" {
		t.Errorf("expected defaults to fill the rest, found %+v", cfg)
	}
}
