package shader_go

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type ArgumentKind int8

const (
	ARG_BOOL ArgumentKind = iota
	ARG_BYTE
	ARG_WORD
	ARG_DWORD
	ARG_QWORD
	ARG_FLOAT
	ARG_DOUBLE
)

var kArgumentKindNames = [...]string{"bool", "uint8", "uint16", "uint", "uint64", "float", "double"}

func (this ArgumentKind) String() string {
	if int(this) < 0 || int(this) >= len(kArgumentKindNames) {
		return "unknown"
	}
	return kArgumentKindNames[this]
}

// / A typed argument handed to a shader generator method. Values hold the
// / raw bits of every element: a scalar has exactly one.
type ScriptArgument struct {
	Kind    ArgumentKind
	IsArray bool
	Values  []uint64
}

func BoolArg(b bool) ScriptArgument {
	v := uint64(0)
	if b {
		v = 1
	}
	return ScriptArgument{Kind: ARG_BOOL, Values: []uint64{v}}
}

func ByteArg(v uint8) ScriptArgument   { return ScriptArgument{Kind: ARG_BYTE, Values: []uint64{uint64(v)}} }
func WordArg(v uint16) ScriptArgument  { return ScriptArgument{Kind: ARG_WORD, Values: []uint64{uint64(v)}} }
func DWordArg(v uint32) ScriptArgument { return ScriptArgument{Kind: ARG_DWORD, Values: []uint64{uint64(v)}} }
func IntArg(v int32) ScriptArgument    { return DWordArg(uint32(v)) }
func QWordArg(v uint64) ScriptArgument { return ScriptArgument{Kind: ARG_QWORD, Values: []uint64{v}} }

func FloatArg(v float32) ScriptArgument {
	return ScriptArgument{Kind: ARG_FLOAT, Values: []uint64{uint64(math.Float32bits(v))}}
}

func DoubleArg(v float64) ScriptArgument {
	return ScriptArgument{Kind: ARG_DOUBLE, Values: []uint64{math.Float64bits(v)}}
}

// / An array argument; values are raw element bits of the given kind.
func ArrayArg(kind ArgumentKind, values ...uint64) ScriptArgument {
	return ScriptArgument{Kind: kind, IsArray: true, Values: append([]uint64{}, values...)}
}

func BoolArrayArg(values ...bool) ScriptArgument {
	ret := ScriptArgument{Kind: ARG_BOOL, IsArray: true}
	for _, b := range values {
		if b {
			ret.Values = append(ret.Values, 1)
		} else {
			ret.Values = append(ret.Values, 0)
		}
	}
	return ret
}

func (this ScriptArgument) Len() int { return len(this.Values) }

func (this ScriptArgument) Bool() bool { return len(this.Values) > 0 && this.Values[0] != 0 }

// / First element as a signed integer.
func (this ScriptArgument) Int() int64 {
	if len(this.Values) == 0 {
		return 0
	}
	v := this.Values[0]
	switch this.Kind {
	case ARG_DWORD:
		return int64(int32(uint32(v)))
	case ARG_FLOAT:
		return int64(math.Float32frombits(uint32(v)))
	case ARG_DOUBLE:
		return int64(math.Float64frombits(v))
	}
	return int64(v)
}

// / First element as a float.
func (this ScriptArgument) Float() float64 {
	if len(this.Values) == 0 {
		return 0
	}
	switch this.Kind {
	case ARG_FLOAT:
		return float64(math.Float32frombits(uint32(this.Values[0])))
	case ARG_DOUBLE:
		return math.Float64frombits(this.Values[0])
	}
	return float64(this.Int())
}

// / One 32 bit unit per element. 64 bit integers keep their low half only;
// / doubles are narrowed to float bits.
func (this ScriptArgument) appendUnits(out []uint32) []uint32 {
	for _, v := range this.Values {
		switch this.Kind {
		case ARG_BOOL:
			if v != 0 {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case ARG_BYTE:
			out = append(out, uint32(uint8(v)))
		case ARG_WORD:
			out = append(out, uint32(uint16(v)))
		case ARG_DOUBLE:
			out = append(out, math.Float32bits(float32(math.Float64frombits(v))))
		default:
			out = append(out, uint32(v))
		}
	}
	return out
}

// / Flatten the arguments of a generator call into permutation key data.
func SerializeArguments(args []ScriptArgument) []uint32 {
	ret := make([]uint32, 0, len(args))
	for _, a := range args {
		ret = a.appendUnits(ret)
	}
	return ret
}

// / Identifies one permutation of a shader generator.
type ShaderIdentifier struct {
	/// Files the generating script was loaded from; the first is the top level.
	SourceFiles []SourceFileInfo
	/// "function::class"
	ShaderIdentifier string
	ParameterData    []uint32
	/// Hash of the normalized input signature; zero until generated.
	InputSignatureHash [kSourceHashSize]byte
}

func NewShaderIdentifier(function, class string, args []ScriptArgument, sources []SourceFileInfo) *ShaderIdentifier {
	ret := ShaderIdentifier{}
	ret.ShaderIdentifier = function + "::" + class
	ret.ParameterData = SerializeArguments(args)
	ret.SourceFiles = append([]SourceFileInfo{}, sources...)
	return &ret
}

func (this *ShaderIdentifier) Clone() *ShaderIdentifier {
	ret := *this
	ret.SourceFiles = append([]SourceFileInfo{}, this.SourceFiles...)
	ret.ParameterData = append([]uint32{}, this.ParameterData...)
	return &ret
}

// / Little endian bytes of the parameter data.
func (this *ShaderIdentifier) ParameterBytes() []byte {
	ret := make([]byte, 4*len(this.ParameterData))
	for i, v := range this.ParameterData {
		binary.LittleEndian.PutUint32(ret[4*i:], v)
	}
	return ret
}

// / Ordering used by the shader cache: counts first, then the name, the
// / parameter data and the source hashes. The input signature hash is not
// / part of the order because it is a product of generation.
func (this *ShaderIdentifier) Compare(other *ShaderIdentifier) int {
	if d := len(this.SourceFiles) - len(other.SourceFiles); d != 0 {
		return d
	}
	if d := len(this.ParameterData) - len(other.ParameterData); d != 0 {
		return d
	}
	if d := strings.Compare(this.ShaderIdentifier, other.ShaderIdentifier); d != 0 {
		return d
	}
	for i := range this.ParameterData {
		if this.ParameterData[i] != other.ParameterData[i] {
			if this.ParameterData[i] < other.ParameterData[i] {
				return -1
			}
			return 1
		}
	}
	for i := range this.SourceFiles {
		if d := bytes.Compare(this.SourceFiles[i].Hash[:], other.SourceFiles[i].Hash[:]); d != 0 {
			return d
		}
	}
	return 0
}

// / Same function and class, same parameter data and same input signature.
func (this *ShaderIdentifier) Equal(other *ShaderIdentifier) bool {
	if this.ShaderIdentifier != other.ShaderIdentifier || len(this.ParameterData) != len(other.ParameterData) {
		return false
	}
	for i := range this.ParameterData {
		if this.ParameterData[i] != other.ParameterData[i] {
			return false
		}
	}
	return this.InputSignatureHash == other.InputSignatureHash
}

// / Key bytes: name, parameter data and source hashes.
func (this *ShaderIdentifier) Key() []byte {
	ret := make([]byte, 0, len(this.ShaderIdentifier)+4*len(this.ParameterData)+kSourceHashSize*len(this.SourceFiles)+1)
	ret = append(ret, this.ShaderIdentifier...)
	ret = append(ret, 0)
	ret = append(ret, this.ParameterBytes()...)
	for _, sf := range this.SourceFiles {
		ret = append(ret, sf.Hash[:]...)
	}
	return ret
}

// / Content derived file name for the permutation.
func (this *ShaderIdentifier) HashName() string {
	sum := blake3.Sum256(this.Key())
	return hex.EncodeToString(sum[:20])
}

// / Hash of an input signature ("float3 POSITION,float2 TEXCOORD0").
// / Case is not significant.
func HashInputSignature(signature string) [kSourceHashSize]byte {
	var ret [kSourceHashSize]byte
	if signature == "" {
		return ret
	}
	h := blake3.New()
	h.Write([]byte(cases.Upper(language.Und).String(signature)))
	copy(ret[:], h.Sum(nil))
	return ret
}
