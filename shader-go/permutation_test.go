package shader_go

import (
	"math"
	"reflect"
	"testing"
)

func TestSerializeArguments(t *testing.T) {
	tests := []struct {
		name string
		args []ScriptArgument
		want []uint32
	}{
		{"bool", []ScriptArgument{BoolArg(true), BoolArg(false)}, []uint32{1, 0}},
		{"small integers", []ScriptArgument{ByteArg(0xff), WordArg(0xbeef)}, []uint32{0xff, 0xbeef}},
		{"negative int", []ScriptArgument{IntArg(-1)}, []uint32{0xffffffff}},
		{"qword keeps low half", []ScriptArgument{QWordArg(0x1122334455667788)}, []uint32{0x55667788}},
		{"float", []ScriptArgument{FloatArg(1.5)}, []uint32{math.Float32bits(1.5)}},
		{"double narrowed", []ScriptArgument{DoubleArg(0.25)}, []uint32{math.Float32bits(0.25)}},
		{"array", []ScriptArgument{ArrayArg(ARG_DWORD, 1, 2, 3)}, []uint32{1, 2, 3}},
		{"bool array", []ScriptArgument{BoolArrayArg(true, false, true)}, []uint32{1, 0, 1}},
		{"mixed", []ScriptArgument{IntArg(2), BoolArrayArg(true), ByteArg(7)}, []uint32{2, 1, 7}},
		{"none", nil, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SerializeArguments(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestScriptArgumentAccessors(t *testing.T) {
	if IntArg(-3).Int() != -3 || FloatArg(2.75).Int() != 2 || DoubleArg(-1.5).Float() != -1.5 {
		t.Error("numeric accessors")
	}
	if !BoolArg(true).Bool() || BoolArg(false).Bool() || (ScriptArgument{}).Bool() {
		t.Error("Bool")
	}
	if ArrayArg(ARG_FLOAT).Len() != 0 || ARG_QWORD.String() != "uint64" || ArgumentKind(42).String() != "unknown" {
		t.Error("misc")
	}
}

func testSources(hashes ...byte) []SourceFileInfo {
	var ret []SourceFileInfo
	for i, h := range hashes {
		sf := SourceFileInfo{Name: string(rune('a' + i))}
		sf.Hash[0] = h
		ret = append(ret, sf)
	}
	return ret
}

func TestShaderIdentifierCompare(t *testing.T) {
	base := NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(1)}, testSources(1))
	tests := []struct {
		name  string
		other *ShaderIdentifier
		sign  int
	}{
		{"same", NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(1)}, testSources(1)), 0},
		{"more sources", NewShaderIdentifier("a", "A", []ScriptArgument{IntArg(1)}, testSources(0, 0)), -1},
		{"more parameters", NewShaderIdentifier("a", "A", []ScriptArgument{IntArg(0), IntArg(0)}, testSources(0)), -1},
		{"name", NewShaderIdentifier("zzz", "Mat", []ScriptArgument{IntArg(0)}, testSources(0)), -1},
		{"parameter value", NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(2)}, testSources(0)), -1},
		{"smaller parameter", NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(0)}, testSources(9)), 1},
		{"source hash", NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(1)}, testSources(2)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base.Compare(tt.other)
			if (got < 0 && tt.sign >= 0) || (got > 0 && tt.sign <= 0) || (got == 0 && tt.sign != 0) {
				t.Errorf("Compare = %d, want sign %d", got, tt.sign)
			}
			if back := tt.other.Compare(base); (back < 0) != (got > 0) {
				t.Errorf("Compare not antisymmetric: %d / %d", got, back)
			}
		})
	}
}

func TestShaderIdentifierEqual(t *testing.T) {
	a := NewShaderIdentifier("main", "Mat", []ScriptArgument{BoolArg(true)}, testSources(1))
	b := a.Clone()
	b.SourceFiles[0].Hash[0] = 7
	if !a.Equal(b) {
		t.Error("source hashes are not part of equality")
	}
	b.InputSignatureHash = HashInputSignature("float3 POSITION")
	if a.Equal(b) {
		t.Error("input signature ignored")
	}
	if a.Compare(b) == 0 {
		t.Error("different sources compare equal")
	}
	b = a.Clone()
	b.InputSignatureHash = HashInputSignature("float3 POSITION")
	if a.Compare(b) != 0 {
		t.Error("input signature is part of the order")
	}
	b.ParameterData[0] = 0
	if a.Equal(b) || a.ParameterData[0] != 1 {
		t.Error("Clone shares parameter data")
	}
}

func TestShaderIdentifierHashName(t *testing.T) {
	a := NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(1)}, testSources(1))
	name := a.HashName()
	if len(name) != 40 {
		t.Fatalf("hash name %q", name)
	}
	if a.Clone().HashName() != name {
		t.Error("hash name not stable")
	}
	b := a.Clone()
	b.InputSignatureHash = HashInputSignature("float4 COLOR")
	if b.HashName() != name {
		t.Error("input signature changes the file name")
	}
	for _, other := range []*ShaderIdentifier{
		NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(2)}, testSources(1)),
		NewShaderIdentifier("main", "Other", []ScriptArgument{IntArg(1)}, testSources(1)),
		NewShaderIdentifier("main", "Mat", []ScriptArgument{IntArg(1)}, testSources(2)),
	} {
		if other.HashName() == name {
			t.Errorf("%s collides", other.ShaderIdentifier)
		}
	}
}

func TestHashInputSignature(t *testing.T) {
	if HashInputSignature("float3 position") != HashInputSignature("FLOAT3 POSITION") {
		t.Error("case is significant")
	}
	if HashInputSignature("float3 POSITION") == HashInputSignature("float4 POSITION") {
		t.Error("types ignored")
	}
	if HashInputSignature("") != ([kSourceHashSize]byte{}) {
		t.Error("empty signature should hash to zero")
	}
}

func TestParameterBytes(t *testing.T) {
	id := NewShaderIdentifier("f", "", []ScriptArgument{DWordArg(0x04030201)}, nil)
	if got := id.ParameterBytes(); !reflect.DeepEqual(got, []byte{1, 2, 3, 4}) {
		t.Errorf("got %v", got)
	}
	if id.ShaderIdentifier != "f::" {
		t.Errorf("identifier %q", id.ShaderIdentifier)
	}
}

// Arrays carry no length, so elements may move between adjacent arrays.
func TestArrayArgumentsFlatten(t *testing.T) {
	a := NewShaderIdentifier("main", "Mat", []ScriptArgument{ArrayArg(ARG_DWORD, 1), ArrayArg(ARG_DWORD)}, testSources(1))
	b := NewShaderIdentifier("main", "Mat", []ScriptArgument{ArrayArg(ARG_DWORD), ArrayArg(ARG_DWORD, 1)}, testSources(1))
	if !a.Equal(b) || a.HashName() != b.HashName() {
		t.Errorf("%v and %v differ", a.ParameterData, b.ParameterData)
	}
}
