package shader_go

import (
	"bytes"

	"github.com/zeebo/blake3"
)

// / The two kinds of script resource the preprocessor distinguishes. Only
// / shader scripts get string interpolation and replacement blocks.
type ScriptKind int8

const (
	SCRIPT_KIND_PLAIN ScriptKind = iota
	SCRIPT_KIND_SHADER
)

func (this ScriptKind) String() string {
	if this == SCRIPT_KIND_SHADER {
		return "shader"
	}
	return "plain"
}

const kSourceHashSize = 32

// / A file that contributed to a loaded script, with its content hash.
type SourceFileInfo struct {
	Name string
	Hash [kSourceHashSize]byte
}

func HashSource(data []byte) [kSourceHashSize]byte {
	var ret [kSourceHashSize]byte
	h := blake3.New()
	h.Write(data)
	copy(ret[:], h.Sum(nil))
	return ret
}

// / A named section of preprocessed code added to the script module.
type ScriptSection struct {
	Name string
	Code string
}

type samplerRef struct {
	block   int
	sampler int
}

// / A script resource: the preprocessed sections plus, for shader scripts,
// / the descriptor tables collected from replacement blocks. The tables are
// / cleared and rebuilt on every load.
type ShaderScript struct {
	name_ string
	kind_ ScriptKind
	/// Object type exposed through the "this" accessor, if any.
	thisType_ string

	definitions_ map[string]string
	/// Macros defined once preprocessing finished.
	macros_      map[string]string
	sourceFiles_ []SourceFileInfo
	sections_    []ScriptSection

	cbuffers_        []ConstantBufferDesc
	cbufferLUT_      map[string]int
	types_           []ConstantTypeDesc
	typeLUT_         map[string]int
	samplerBlocks_   []SamplerBlockDesc
	samplerBlockLUT_ map[string]int
	samplerLUT_      map[string]samplerRef
	shaderCalls_     []ShaderCallFunctionDesc
	shaderCallLUT_   map[string][]int
	/// Namespace -> text of its <?common ?> blocks.
	commonCode_ map[string]string

	resolved_ bool
}

func NewShaderScript(name string, kind ScriptKind) *ShaderScript {
	ret := ShaderScript{}
	ret.name_ = name
	ret.kind_ = kind
	ret.Clear()
	return &ret
}

func (this *ShaderScript) Name() string         { return this.name_ }
func (this *ShaderScript) Kind() ScriptKind     { return this.kind_ }
func (this *ShaderScript) IsShaderScript() bool { return this.kind_ == SCRIPT_KIND_SHADER }
func (this *ShaderScript) ThisType() string     { return this.thisType_ }
func (this *ShaderScript) SetThisType(t string) { this.thisType_ = t }
func (this *ShaderScript) IsResolved() bool     { return this.resolved_ }

func (this *ShaderScript) IsMacroDefined(name string) bool {
	_, ok := this.macros_[name]
	return ok
}

func (this *ShaderScript) Definitions() map[string]string { return this.definitions_ }

// / Macros defined once preprocessing finished.
func (this *ShaderScript) Macros() map[string]string { return this.macros_ }

// / Drop everything collected by the previous load.
func (this *ShaderScript) Clear() {
	this.macros_ = map[string]string{}
	this.sourceFiles_ = nil
	this.sections_ = nil
	this.cbuffers_ = nil
	this.cbufferLUT_ = map[string]int{}
	this.types_ = nil
	this.typeLUT_ = map[string]int{}
	this.samplerBlocks_ = nil
	this.samplerBlockLUT_ = map[string]int{}
	this.samplerLUT_ = map[string]samplerRef{}
	this.shaderCalls_ = nil
	this.shaderCallLUT_ = map[string][]int{}
	this.commonCode_ = map[string]string{}
	this.resolved_ = false
}

func lutKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "::" + name
}

// / Record a loaded file. Files with identical content are listed once.
// / Returns false if the content was already listed.
func (this *ShaderScript) AddSourceFile(name string, data []byte) bool {
	hash := HashSource(data)
	for _, sf := range this.sourceFiles_ {
		if bytes.Equal(sf.Hash[:], hash[:]) {
			return false
		}
	}
	this.sourceFiles_ = append(this.sourceFiles_, SourceFileInfo{Name: name, Hash: hash})
	return true
}

func (this *ShaderScript) SourceFiles() []SourceFileInfo {
	return append([]SourceFileInfo{}, this.sourceFiles_...)
}

func (this *ShaderScript) AddSection(name, code string) {
	this.sections_ = append(this.sections_, ScriptSection{Name: name, Code: code})
}

func (this *ShaderScript) Sections() []ScriptSection { return this.sections_ }

// / Fingerprint of the definitions and sources used for the last load.
func (this *ShaderScript) Fingerprint() uint64 {
	buf := make([]byte, 0, 64*len(this.sourceFiles_)+8)
	for _, sf := range this.sourceFiles_ {
		buf = append(buf, sf.Name...)
		buf = append(buf, sf.Hash[:]...)
	}
	d := DefinitionsFingerprint(this.definitions_)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(d>>(8*i)))
	}
	return rapidhash(buf)
}

// Constant buffers ------------------------------------------------------------

// / Store a constant buffer descriptor. Returns its handle, or -1 if a
// / buffer with the same name already exists in the namespace.
func (this *ShaderScript) AddConstantBufferDesc(desc ConstantBufferDesc) int {
	key := lutKey(desc.ParentNamespace, desc.Name)
	if _, ok := this.cbufferLUT_[key]; ok {
		return -1
	}
	this.cbuffers_ = append(this.cbuffers_, desc)
	handle := len(this.cbuffers_) - 1
	this.cbufferLUT_[key] = handle
	return handle
}

func (this *ShaderScript) FindConstantBuffer(namespace, name string) int {
	return findScoped(this.cbufferLUT_, namespace, name)
}

func (this *ShaderScript) GetConstantBufferDesc(handle int) (*ConstantBufferDesc, bool) {
	if handle < 0 || handle >= len(this.cbuffers_) {
		return nil, false
	}
	return &this.cbuffers_[handle], true
}

func (this *ShaderScript) ConstantBuffers() []ConstantBufferDesc { return this.cbuffers_ }

// Constant types --------------------------------------------------------------

func (this *ShaderScript) AddConstantTypeDesc(desc ConstantTypeDesc) int {
	key := lutKey(desc.ParentNamespace, desc.Name)
	if _, ok := this.typeLUT_[key]; ok {
		return -1
	}
	this.types_ = append(this.types_, desc)
	handle := len(this.types_) - 1
	this.typeLUT_[key] = handle
	return handle
}

// / Find a type by name, trying the namespace first and then the global
// / scope. Returns -1 if not found.
func (this *ShaderScript) FindConstantType(namespace, name string) int {
	return findScoped(this.typeLUT_, namespace, name)
}

func (this *ShaderScript) GetConstantTypeDesc(handle int) (*ConstantTypeDesc, bool) {
	if handle < 0 || handle >= len(this.types_) {
		return nil, false
	}
	return &this.types_[handle], true
}

func (this *ShaderScript) ConstantTypes() []ConstantTypeDesc { return this.types_ }

// Sampler blocks --------------------------------------------------------------

// / Store a sampler block. Duplicate blocks, and samplers already declared
// / by another block in the same namespace, are reported through log.
func (this *ShaderScript) AddSamplerBlockDesc(desc SamplerBlockDesc, log Logger) int {
	key := lutKey(desc.ParentNamespace, desc.Name)
	if _, ok := this.samplerBlockLUT_[key]; ok {
		log.Write(SEVERITY_ERROR, "Duplicate sampler block declaration '%s' in surface shader script %s.", desc.Name, this.name_)
		return -1
	}
	for _, s := range desc.Samplers {
		if _, ok := this.samplerLUT_[lutKey(s.ParentNamespace, s.Name)]; ok {
			log.Write(SEVERITY_ERROR, "Duplicate sampler declaration '%s' in sampler block '%s' in surface shader script %s.", s.Name, desc.Name, this.name_)
			return -1
		}
	}
	this.samplerBlocks_ = append(this.samplerBlocks_, desc)
	handle := len(this.samplerBlocks_) - 1
	this.samplerBlockLUT_[key] = handle
	for i, s := range desc.Samplers {
		this.samplerLUT_[lutKey(s.ParentNamespace, s.Name)] = samplerRef{block: handle, sampler: i}
	}
	return handle
}

func (this *ShaderScript) FindSamplerBlock(namespace, name string) int {
	return findScoped(this.samplerBlockLUT_, namespace, name)
}

// / Find an individual sampler by name, namespace first.
func (this *ShaderScript) FindSampler(namespace, name string) (*SamplerDesc, bool) {
	ref, ok := this.samplerLUT_[lutKey(namespace, name)]
	if !ok && namespace != "" {
		ref, ok = this.samplerLUT_[name]
	}
	if !ok {
		return nil, false
	}
	return &this.samplerBlocks_[ref.block].Samplers[ref.sampler], true
}

func (this *ShaderScript) GetSamplerBlockDesc(handle int) (*SamplerBlockDesc, bool) {
	if handle < 0 || handle >= len(this.samplerBlocks_) {
		return nil, false
	}
	return &this.samplerBlocks_[handle], true
}

func (this *ShaderScript) SamplerBlocks() []SamplerBlockDesc { return this.samplerBlocks_ }

// Shader call functions -------------------------------------------------------

// / Store a shader call function. Overloads are allowed; returns -1 only
// / when an overload with the same signature exists in the namespace.
func (this *ShaderScript) AddShaderCallFuncDesc(desc ShaderCallFunctionDesc) int {
	key := lutKey(desc.ParentNamespace, desc.Name)
	for _, h := range this.shaderCallLUT_[key] {
		if this.shaderCalls_[h].SameSignature(&desc) {
			return -1
		}
	}
	this.shaderCalls_ = append(this.shaderCalls_, desc)
	handle := len(this.shaderCalls_) - 1
	this.shaderCallLUT_[key] = append(this.shaderCallLUT_[key], handle)
	return handle
}

// / All overload handles for name, namespace first then global.
func (this *ShaderScript) FindShaderCallFunc(namespace, name string) []int {
	if namespace != "" {
		if h, ok := this.shaderCallLUT_[lutKey(namespace, name)]; ok {
			return h
		}
	}
	return this.shaderCallLUT_[name]
}

func (this *ShaderScript) GetShaderCallFuncDesc(handle int) (*ShaderCallFunctionDesc, bool) {
	if handle < 0 || handle >= len(this.shaderCalls_) {
		return nil, false
	}
	return &this.shaderCalls_[handle], true
}

func (this *ShaderScript) ShaderCallFunctions() []ShaderCallFunctionDesc { return this.shaderCalls_ }

// Common code -----------------------------------------------------------------

func (this *ShaderScript) AddCommonCode(namespace, code string) {
	this.commonCode_[namespace] += code
}

func (this *ShaderScript) CommonCode(namespace string) (string, bool) {
	code, ok := this.commonCode_[namespace]
	return code, ok
}

func findScoped(lut map[string]int, namespace, name string) int {
	if namespace != "" {
		if h, ok := lut[lutKey(namespace, name)]; ok {
			return h
		}
	}
	if h, ok := lut[name]; ok {
		return h
	}
	return -1
}
