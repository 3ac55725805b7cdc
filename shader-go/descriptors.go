package shader_go

import (
	"strconv"
	"strings"
)

// / Primitive type identifiers. User defined types are identified by their
// / (non-negative) handle in the owning script's type table.
type ConstantType int32

const (
	CONSTANT_FLOAT      ConstantType = -16
	CONSTANT_INT        ConstantType = -15
	CONSTANT_UINT       ConstantType = -14
	CONSTANT_BOOL       ConstantType = -13
	CONSTANT_DOUBLE     ConstantType = -12
	CONSTANT_UNRESOLVED ConstantType = -1
)

// / An ordered ": name(value), name(value)" list.
type ParameterList struct {
	names_  []string
	values_ map[string]string
}

func NewParameterList() *ParameterList {
	ret := ParameterList{}
	ret.values_ = map[string]string{}
	return &ret
}

func (this *ParameterList) Set(name, value string) {
	if this.values_ == nil {
		this.values_ = map[string]string{}
	}
	if _, ok := this.values_[name]; !ok {
		this.names_ = append(this.names_, name)
	}
	this.values_[name] = value
}

func (this *ParameterList) Has(name string) bool {
	if this == nil {
		return false
	}
	_, ok := this.values_[name]
	return ok
}

func (this *ParameterList) Get(name, def string) string {
	if this == nil {
		return def
	}
	if v, ok := this.values_[name]; ok {
		return v
	}
	return def
}

// / Integer value of a parameter. A leading register class letter is
// / accepted, so both "register(3)" and "register(b3)" give 3.
func (this *ParameterList) GetInt(name string, def int) int {
	v := strings.TrimSpace(this.Get(name, ""))
	if v == "" {
		return def
	}
	if len(v) > 1 && isIdentStart(v[0]) && isDigit(v[1]) {
		v = v[1:]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (this *ParameterList) Names() []string {
	if this == nil {
		return nil
	}
	return append([]string{}, this.names_...)
}

func (this *ParameterList) Len() int {
	if this == nil {
		return 0
	}
	return len(this.names_)
}

// / One field of a constant buffer or constant type.
type ConstantDesc struct {
	Name string
	/// Type name exactly as declared ("float3", "matrix", "Light").
	FullTypeName string
	/// "float", "int", "uint", "bool" or the user defined type name.
	PrimitiveTypeName string
	TypeId            ConstantType
	IsUDT             bool
	IsArray           bool
	Rows              int
	Columns           int
	/// Flattened array element count (product of ArrayDimensions).
	Elements        int
	ArrayDimensions []int
	/// Byte length of a single element.
	ElementLength int
	Alignment     int
	Offset        int
	TotalLength   int
	Parameters    *ParameterList
}

// / A user defined structure declared in a <?ctype ?> block.
type ConstantTypeDesc struct {
	Name            string
	ParentNamespace string
	Constants       []ConstantDesc
	Length          int
	Alignment       int
	RegisterCount   int
	Parameters      *ParameterList
}

// / A constant buffer declared in a <?cbuffer ?> block.
type ConstantBufferDesc struct {
	ConstantTypeDesc
	/// Explicit register slot, or -1 to let the linker assign one.
	BufferRegister int
	GlobalOffset   int
	BindVS         bool
	BindPS         bool
}

type SamplerDesc struct {
	Name            string
	TypeName        string
	ParentNamespace string
	RegisterIndex   int
	Parameters      *ParameterList
}

// / A <?samplers ?> block. Unnamed blocks are called "_default_" and are
// / merged into every pixel shader.
type SamplerBlockDesc struct {
	Name            string
	ParentNamespace string
	Samplers        []SamplerDesc
	Parameters      *ParameterList
}

const kDefaultSamplerBlock = "_default_"

type ShaderCallParameterDesc struct {
	Name     string
	TypeName string
	/// "", "in", "out", "inout", "uniform" or "script".
	Modifier string
	/// Compile-time only; excluded from the native declaration.
	ScriptParameter bool
}

// / A __shadercall function declared in script source.
type ShaderCallFunctionDesc struct {
	Name            string
	ParentNamespace string
	ReturnType      string
	RequiresReturn  bool
	Parameters      []ShaderCallParameterDesc
	/// Native shader declaration, e.g. "float4 lighting(in float3 N)".
	Declaration string
	/// Script expression producing the native call argument list.
	CallingParams string
	/// Script facing replacement of the declaration.
	ScriptDeclaration string
}

// / Two overloads clash when they take the same parameter types and
// / modifiers in the same order.
func (this *ShaderCallFunctionDesc) SameSignature(other *ShaderCallFunctionDesc) bool {
	if len(this.Parameters) != len(other.Parameters) {
		return false
	}
	for i := range this.Parameters {
		a, b := &this.Parameters[i], &other.Parameters[i]
		if a.TypeName != b.TypeName || a.Modifier != b.Modifier {
			return false
		}
	}
	return true
}

// / Compute field offsets and the aggregate length / alignment using
// / native struct packing rules: each field starts at a multiple of its
// / alignment and the aggregate is padded to its largest alignment.
func (this *ConstantTypeDesc) ComputeLayout() {
	this.Length = 0
	this.Alignment = 0
	for i := range this.Constants {
		c := &this.Constants[i]
		align := max(c.Alignment, 1)
		this.Length = (this.Length + (align - 1)) &^ (align - 1)
		c.Offset = this.Length
		c.TotalLength = c.ElementLength * c.Elements
		this.Length += c.TotalLength
		if c.Alignment > this.Alignment {
			this.Alignment = c.Alignment
		}
	}
	if this.Alignment == 0 {
		this.Alignment = 1
	}
	this.Length = (this.Length + (this.Alignment - 1)) &^ (this.Alignment - 1)
	this.RegisterCount = (this.Length + 15) / 16
}

// / Classify an intrinsic type name. Returns false for anything that must
// / be resolved as a user defined type.
func ClassifyIntrinsicType(name string, c *ConstantDesc) bool {
	if name == "matrix" {
		c.Rows, c.Columns = 4, 4
		c.ElementLength = 64
		c.Alignment = 4
		c.TypeId = CONSTANT_FLOAT
		c.PrimitiveTypeName = "float"
		return true
	}

	baseLen, baseBytes := 0, 0
	switch {
	case strings.HasPrefix(name, "float"):
		baseLen, baseBytes = 5, 4
		c.TypeId, c.PrimitiveTypeName = CONSTANT_FLOAT, "float"
	case strings.HasPrefix(name, "int"):
		baseLen, baseBytes = 3, 4
		c.TypeId, c.PrimitiveTypeName = CONSTANT_INT, "int"
	case strings.HasPrefix(name, "uint"):
		baseLen, baseBytes = 4, 4
		c.TypeId, c.PrimitiveTypeName = CONSTANT_UINT, "uint"
	case strings.HasPrefix(name, "bool"):
		baseLen, baseBytes = 4, 1
		c.TypeId, c.PrimitiveTypeName = CONSTANT_BOOL, "bool"
	default:
		return false
	}
	c.Alignment = baseBytes

	suffix := name[baseLen:]
	switch {
	case len(suffix) == 3 && suffix[1] == 'x':
		rows, cols := int(suffix[0]-'0'), int(suffix[2]-'0')
		if rows < 1 || rows > 4 || cols < 1 || cols > 4 {
			return false
		}
		c.Rows, c.Columns = rows, cols
		c.ElementLength = rows * cols * baseBytes
	case len(suffix) == 1:
		n := int(suffix[0] - '0')
		if n < 1 || n > 4 {
			return false
		}
		c.Rows, c.Columns = 1, n
		c.ElementLength = n * baseBytes
	case len(suffix) == 0:
		c.Rows, c.Columns = 1, 1
		c.ElementLength = baseBytes
	default:
		return false
	}
	return true
}
