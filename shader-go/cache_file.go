package shader_go

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const kCacheFileVersion uint32 = 0x01000000

var kCacheFileMagic = [...]string{VERTEX_SHADER: "CGEVSC", PIXEL_SHADER: "CGEPSC"}
var kCacheFileExtension = [...]string{VERTEX_SHADER: ".vs4", PIXEL_SHADER: ".ps4"}

// EncodeAll and DecodeAll may be used concurrently.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// / A compiled permutation as stored in the shader cache directory and
// / exchanged with the shared cache server.
// /
// / Layout (little endian): magic, version, identifier string, source
// / list (name, hash), parameter data, input signature hash, entry point
// / and the zstd compressed bytecode. Strings and blobs are prefixed by
// / their uint32 length.
type CacheRecord struct {
	Stage      ShaderStage
	Identifier *ShaderIdentifier
	Entry      string
	Bytecode   []byte
}

// / "<dir>/<hash name>.vs4" or ".ps4".
func CacheFileName(dir string, stage ShaderStage, ident *ShaderIdentifier) string {
	return spliceSlash(dir, ident.HashName()+kCacheFileExtension[stage])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putString(buf *bytes.Buffer, s string) {
	putUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func (this *CacheRecord) Encode() []byte {
	var buf bytes.Buffer
	ident := this.Identifier
	buf.WriteString(kCacheFileMagic[this.Stage])
	putUint32(&buf, kCacheFileVersion)
	putString(&buf, ident.ShaderIdentifier)
	putUint32(&buf, uint32(len(ident.SourceFiles)))
	for _, sf := range ident.SourceFiles {
		putString(&buf, sf.Name)
		buf.Write(sf.Hash[:])
	}
	putUint32(&buf, uint32(len(ident.ParameterData)))
	buf.Write(ident.ParameterBytes())
	buf.Write(ident.InputSignatureHash[:])
	putString(&buf, this.Entry)
	blob := zstdEncoder.EncodeAll(this.Bytecode, nil)
	putUint32(&buf, uint32(len(blob)))
	buf.Write(blob)
	return buf.Bytes()
}

type cacheReader struct {
	data []byte
	pos  int
	bad  bool
}

func (this *cacheReader) readBytes(n int) []byte {
	if this.bad || n < 0 || this.pos+n > len(this.data) {
		this.bad = true
		return nil
	}
	ret := this.data[this.pos : this.pos+n]
	this.pos += n
	return ret
}

func (this *cacheReader) readUint32() uint32 {
	b := this.readBytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (this *cacheReader) readString() string {
	return string(this.readBytes(int(this.readUint32())))
}

// / Decode a cache file. Returns false with err set if the data is
// / truncated, carries the wrong magic or version, or does not decompress.
func DecodeCacheRecord(data []byte, err *string) (*CacheRecord, bool) {
	r := cacheReader{data: data}
	ret := CacheRecord{}
	magic := string(r.readBytes(6))
	switch magic {
	case kCacheFileMagic[VERTEX_SHADER]:
		ret.Stage = VERTEX_SHADER
	case kCacheFileMagic[PIXEL_SHADER]:
		ret.Stage = PIXEL_SHADER
	default:
		*err = "not a shader cache file"
		return nil, false
	}
	if v := r.readUint32(); v != kCacheFileVersion {
		*err = fmt.Sprintf("unsupported cache file version 0x%08x", v)
		return nil, false
	}

	ident := ShaderIdentifier{}
	ident.ShaderIdentifier = r.readString()
	count := int(r.readUint32())
	for i := 0; i < count && !r.bad; i++ {
		sf := SourceFileInfo{Name: r.readString()}
		copy(sf.Hash[:], r.readBytes(kSourceHashSize))
		ident.SourceFiles = append(ident.SourceFiles, sf)
	}
	params := r.readBytes(4 * int(r.readUint32()))
	for i := 0; i+4 <= len(params); i += 4 {
		ident.ParameterData = append(ident.ParameterData, binary.LittleEndian.Uint32(params[i:]))
	}
	copy(ident.InputSignatureHash[:], r.readBytes(kSourceHashSize))
	ret.Entry = r.readString()
	blob := r.readBytes(int(r.readUint32()))
	if r.bad {
		*err = "truncated shader cache file"
		return nil, false
	}

	code, err1 := zstdDecoder.DecodeAll(blob, nil)
	if err1 != nil {
		*err = err1.Error()
		return nil, false
	}
	ret.Bytecode = code
	ret.Identifier = &ident
	return &ret, true
}
