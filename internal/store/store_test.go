package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	states := []string{
		`[]`,
		`[{"role":"user","text":"hi"},{"role":"model","text":"hello"}]`,
		`{"summary":"","history":[]}`,
		`{"collection_id":"ctx-abc"}`,
	}
	for _, state := range states {
		if err := s.Create("round", jsonx.RawMessage(state)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		loaded, err := s.Load("round")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertJSONEqual(t, state, loaded)
		if err := s.Delete("round"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := newTestStore(t)

	first := jsonx.RawMessage(`[{"role":"user","text":"original"}]`)
	if err := s.Create("dup", first); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := s.Create("dup", jsonx.RawMessage(`[]`))
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The first state must be untouched by the failed create.
	loaded, err := s.Load("dup")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertJSONEqual(t, string(first), loaded)
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("ghost")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("keep", jsonx.RawMessage(`[]`)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete("ghost"); err != nil {
		t.Fatalf("deleting a missing context should not error, got %v", err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != "keep" {
		t.Fatalf("key set altered by no-op delete: %v", ids)
	}
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"zulu", "alpha", "mike"} {
		if err := s.Create(id, jsonx.RawMessage(`[]`)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mike", "zulu"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List = %v, want %v", ids, want)
		}
	}
}

func TestUnicodeFidelity(t *testing.T) {
	s := newTestStore(t)
	state := `[{"role":"user","text":"Schrödinger 你好 🐈"},{"role":"model","text":""}]`
	if err := s.Create("uni", jsonx.RawMessage(state)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	loaded, err := s.Load("uni")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var turns []map[string]string
	if err := jsonx.Unmarshal(loaded, &turns); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if turns[0]["text"] != "Schrödinger 你好 🐈" {
		t.Errorf("unicode mangled: %q", turns[0]["text"])
	}
	if turns[1]["text"] != "" {
		t.Errorf("empty text not preserved: %q", turns[1]["text"])
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Create("a", jsonx.RawMessage(`[]`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Save("a", jsonx.RawMessage(`[{"role":"user","text":"x"}]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestInvalidIDRejected(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", "  ", "../escape", "a/b"} {
		if err := s.Create(id, jsonx.RawMessage(`[]`)); err == nil {
			t.Errorf("Create(%q) should fail", id)
		}
	}
}

// assertJSONEqual compares two JSON documents structurally so indentation
// differences introduced by the store don't matter.
func assertJSONEqual(t *testing.T, want string, got jsonx.RawMessage) {
	t.Helper()
	var wantVal, gotVal any
	if err := jsonx.Unmarshal([]byte(want), &wantVal); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	if err := jsonx.Unmarshal(got, &gotVal); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	wantNorm, _ := jsonx.Marshal(wantVal)
	gotNorm, _ := jsonx.Marshal(gotVal)
	if string(wantNorm) != string(gotNorm) {
		t.Fatalf("state mismatch:\nwant %s\ngot  %s", wantNorm, gotNorm)
	}
}
