package shader_go

import (
	"path/filepath"
	"testing"
)

func openTestShaderLog(t *testing.T, path string) *ShaderLog {
	t.Helper()
	log := NewShaderLog()
	var err string
	if !log.Open(path, &err) {
		t.Fatalf("open %s: %s", path, err)
	}
	t.Cleanup(log.Close)
	return log
}

func TestShaderLogRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.db")
	log := openTestShaderLog(t, path)
	a := NewShaderIdentifier("vsMain", "Mat", []ScriptArgument{IntArg(1)}, testSources(1))
	b := NewShaderIdentifier("psMain", "Mat", nil, testSources(1, 2))

	var err string
	if !log.Record(VERTEX_SHADER, a, false, 100, 10, &err) || !log.Record(PIXEL_SHADER, b, true, 0, 20, &err) {
		t.Fatal(err)
	}
	// A later success replaces the failure.
	if !log.Record(PIXEL_SHADER, b, false, 42, 30, &err) {
		t.Fatal(err)
	}

	entries, ok := log.Entries(&err)
	if !ok {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries %+v", entries)
	}
	ps, vs := entries[0], entries[1]
	if ps.File != b.HashName()+".ps4" || ps.Stage != PIXEL_SHADER || ps.Failed || ps.Size != 42 ||
		ps.Sources != 2 || ps.CreatedAt != 20 || ps.LastAccess != 30 {
		t.Errorf("pixel entry %+v", ps)
	}
	if vs.File != a.HashName()+".vs4" || vs.Identifier != "vsMain::Mat" || vs.Size != 100 {
		t.Errorf("vertex entry %+v", vs)
	}
}

func TestShaderLogStaleAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.db")
	log := openTestShaderLog(t, path)
	a := NewShaderIdentifier("a", "", nil, testSources(1))
	b := NewShaderIdentifier("b", "", nil, testSources(1))
	var err string
	log.Record(VERTEX_SHADER, a, false, 1, 100, &err)
	log.Record(VERTEX_SHADER, b, false, 1, 100, &err)
	log.Touch(VERTEX_SHADER, b, 500)

	stale, ok := log.Stale(200, &err)
	if !ok {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].Identifier != "a::" {
		t.Fatalf("stale %+v", stale)
	}
	if !log.Remove(stale[0].File, &err) {
		t.Fatal(err)
	}
	entries, _ := log.Entries(&err)
	if len(entries) != 1 || entries[0].LastAccess != 500 {
		t.Errorf("entries %+v", entries)
	}
}

func TestShaderLogReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.db")
	first := NewShaderLog()
	var err string
	if !first.Open(path, &err) {
		t.Fatal(err)
	}
	first.Record(PIXEL_SHADER, NewShaderIdentifier("p", "C", nil, nil), true, 0, 1, &err)
	first.Close()
	first.Close()

	second := openTestShaderLog(t, path)
	entries, ok := second.Entries(&err)
	if !ok || len(entries) != 1 || !entries[0].Failed {
		t.Errorf("entries %+v %s", entries, err)
	}
}
