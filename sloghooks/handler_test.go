package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cachekit"
)

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad record %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestHandlerLevelsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewJSONHandler(&buf, nil)), Options{})

	h.HandleError(cachekit.OpGet, "users", "users::42", errors.New("timeout"))
	h.HandleError(cachekit.OpClear, "users", "users::", errors.New("down"))

	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("records=%d", len(recs))
	}
	if recs[0]["level"] != "WARN" || recs[0]["msg"] != "cachekit.get_error" || recs[0]["ns"] != "users" {
		t.Fatalf("get record=%v", recs[0])
	}
	if recs[0]["key"] == "users::42" || recs[0]["key"] == "" {
		t.Fatalf("key not redacted: %v", recs[0]["key"])
	}
	if recs[1]["level"] != "ERROR" || recs[1]["err"] != "down" {
		t.Fatalf("clear record=%v", recs[1])
	}
}

func TestHandlerSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewJSONHandler(&buf, nil)), Options{GetEvery: 5, KeepKeys: true})
	for i := 0; i < 10; i++ {
		h.HandleError(cachekit.OpGet, "users", "users::1", errors.New("x"))
	}
	recs := records(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("sampled records=%d", len(recs))
	}
	if recs[0]["key"] != "users::1" {
		t.Fatalf("KeepKeys ignored: %v", recs[0]["key"])
	}
}

func TestHandlerNilLogger(t *testing.T) {
	New(nil, Options{}).HandleError(cachekit.OpPut, "ns", "k", errors.New("x"))
}
