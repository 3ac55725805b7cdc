package shader_go

import (
	"bytes"
	"strings"
	"testing"
)

func testCacheRecord(stage ShaderStage) *CacheRecord {
	ident := NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(3), BoolArg(true)}, testSources(4, 5))
	ident.InputSignatureHash = HashInputSignature("float3 POSITION")
	return &CacheRecord{
		Stage:      stage,
		Identifier: ident,
		Entry:      "main",
		Bytecode:   bytes.Repeat([]byte("DXBC"), 64),
	}
}

func TestCacheRecordRoundTrip(t *testing.T) {
	for _, stage := range []ShaderStage{VERTEX_SHADER, PIXEL_SHADER} {
		t.Run(stage.String(), func(t *testing.T) {
			rec := testCacheRecord(stage)
			data := rec.Encode()
			if !bytes.HasPrefix(data, []byte(kCacheFileMagic[stage])) {
				t.Fatalf("magic %q", data[:6])
			}
			var err string
			got, ok := DecodeCacheRecord(data, &err)
			if !ok {
				t.Fatal(err)
			}
			if got.Stage != stage || got.Entry != "main" || !bytes.Equal(got.Bytecode, rec.Bytecode) {
				t.Errorf("record %+v", got)
			}
			if got.Identifier.Compare(rec.Identifier) != 0 || !got.Identifier.Equal(rec.Identifier) {
				t.Errorf("identifier %+v", got.Identifier)
			}
			if got.Identifier.SourceFiles[1].Name != "b" {
				t.Errorf("sources %+v", got.Identifier.SourceFiles)
			}
		})
	}
}

func TestDecodeCacheRecordErrors(t *testing.T) {
	data := testCacheRecord(VERTEX_SHADER).Encode()
	badVersion := append([]byte{}, data...)
	badVersion[9] = 2
	badBlob := append([]byte{}, data...)
	badBlob[len(badBlob)-8] ^= 0xff

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"empty", nil, "not a shader cache file"},
		{"magic", append([]byte("CGEXSC"), data[6:]...), "not a shader cache file"},
		{"version", badVersion, "unsupported cache file version 0x02000000"},
		{"truncated", data[:len(data)-10], "truncated shader cache file"},
		{"header only", data[:10], "truncated shader cache file"},
		{"corrupt blob", badBlob, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err string
			if _, ok := DecodeCacheRecord(tt.data, &err); ok {
				t.Fatal("decoded")
			}
			if err == "" || !strings.Contains(err, tt.msg) {
				t.Errorf("err %q, want %q", err, tt.msg)
			}
		})
	}
}

func TestCacheFileName(t *testing.T) {
	ident := testCacheRecord(PIXEL_SHADER).Identifier
	if got, want := CacheFileName("Cache/Shaders", PIXEL_SHADER, ident), "Cache/Shaders/"+ident.HashName()+".ps4"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := CacheFileName("", VERTEX_SHADER, ident); got != ident.HashName()+".vs4" {
		t.Errorf("got %q", got)
	}
}
