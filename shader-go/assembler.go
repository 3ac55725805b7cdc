package shader_go

import (
	"slices"
	"strings"
)

type ShaderStage int8

const (
	VERTEX_SHADER ShaderStage = iota
	PIXEL_SHADER
)

// / "vs" or "ps", as used in dump file names.
func (this ShaderStage) String() string {
	if this == PIXEL_SHADER {
		return "ps"
	}
	return "vs"
}

// / Turns the accumulators of a finished generation call into the final
// / native shader source.
type CodeAssembler struct {
	script_ *ShaderScript
	engine_ ScriptEngine
	linker_ *ConstantLinker
	log_    Logger
	dump_   *DebugDump
}

// / The target shader model follows the DX10 / DX11 definitions of the
// / script.
func ScriptShaderModel(script *ShaderScript) ShaderModel {
	if script.IsMacroDefined("DX10") || script.IsMacroDefined("DX11") {
		return SHADER_MODEL_4
	}
	return SHADER_MODEL_3
}

func NewCodeAssembler(script *ShaderScript, engine ScriptEngine, log Logger, dump *DebugDump) *CodeAssembler {
	ret := CodeAssembler{}
	ret.script_ = script
	ret.engine_ = engine
	ret.linker_ = NewConstantLinker(script, ScriptShaderModel(script))
	ret.log_ = log
	ret.dump_ = dump
	return &ret
}

// / Split accumulated declarations on ';' and line breaks, dropping empty
// / entries and comments.
func splitDeclarations(text string) []string {
	var ret []string
	for _, d := range strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' }) {
		d = strings.TrimSpace(d)
		if d == "" || strings.HasPrefix(d, "//") {
			continue
		}
		ret = append(ret, d)
	}
	return ret
}

// / "type[dims] SEMANTIC" of an input declaration such as
// / "float4 weights[2] : BLENDWEIGHT". Declarations without a semantic do
// / not contribute.
func inputSignatureEntry(decl string) (string, bool) {
	typeEnd := strings.IndexAny(decl, " \t")
	if typeEnd < 0 {
		return "", false
	}
	typ := decl[:typeEnd]
	if lb := strings.LastIndexByte(decl, '['); lb >= 0 {
		if rb := strings.IndexByte(decl[lb:], ']'); rb >= 0 {
			typ += decl[lb : lb+rb+1]
		}
	}
	colon := strings.LastIndexByte(decl, ':')
	if colon < 0 {
		return "", false
	}
	return typ + " " + strings.TrimSpace(decl[colon+1:]), true
}

// / Build "void name(inputs, out outputs)" and the input signature.
func BuildSignature(function, inputs, outputs string) (signature, inputSignature string) {
	var sig strings.Builder
	var isig []string
	sig.WriteString("void " + function + "(")
	n := 0
	for _, in := range splitDeclarations(inputs) {
		if e, ok := inputSignatureEntry(in); ok {
			isig = append(isig, e)
		}
		if n > 0 {
			sig.WriteString(", ")
		}
		sig.WriteString(in)
		n++
	}
	for _, out := range splitDeclarations(outputs) {
		if n > 0 {
			sig.WriteString(", out ")
		} else {
			sig.WriteString("out ")
		}
		sig.WriteString(out)
		n++
	}
	sig.WriteString(")")
	return sig.String(), strings.Join(isig, ",")
}

// Call name in the class, then as a global function. The third result is
// false when neither exists.
func (this *CodeAssembler) call(gen *GenerationContext, class, name string) (interface{}, bool, error) {
	r := Resolve(this.engine_, this.script_.Name(), class, name)
	if r.Scope == NOT_FOUND {
		return nil, false, nil
	}
	v, err := CallScript(r.Func, gen, nil)
	return v, true, err
}

func (this *CodeAssembler) callString(gen *GenerationContext, class, name string) (string, error) {
	v, found, err := this.call(gen, class, name)
	if !found || err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Resolve a list of "name;" references to descriptor handles through the
// prefix accessors, skipping repeated names.
func (this *CodeAssembler) resolveRefs(gen *GenerationContext, refs, prefix, kind string, handles []int) ([]int, bool) {
	seen := map[string]bool{}
	for _, name := range splitDeclarations(refs) {
		if seen[name] {
			continue
		}
		v, found, err := this.call(gen, gen.Class, prefix+name)
		h, isInt := v.(int)
		if !found || err != nil || !isInt {
			this.log_.Write(SEVERITY_ERROR, "Unresolved %s symbol '%s' referenced by shader method '%s()' in '%s'.", kind, name, gen.Function, this.script_.Name())
			return nil, false
		}
		seen[name] = true
		if !slices.Contains(handles, h) {
			handles = append(handles, h)
		}
	}
	return handles, true
}

// / Assemble the source of a generated shader: common code, constant
// / buffers, samplers (pixel shaders only), globals, then the entry point.
// / The identifier receives the input signature hash.
func (this *CodeAssembler) Assemble(stage ShaderStage, gen *GenerationContext, ident *ShaderIdentifier) (string, bool) {
	defer METRIC_RECORD("assemble")()

	common, err := this.callString(gen, "", "__shsyscmn"+stage.String())
	if err == nil {
		var classCommon string
		classCommon, err = this.callString(gen, gen.Class, "__shcmn")
		common += classCommon
	}
	if err != nil {
		this.log_.Write(SEVERITY_ERROR, "Failed to retrieve common code for shader method '%s()' in '%s'. %v", gen.Function, this.script_.Name(), err)
		return "", false
	}

	signature, inputSignature := BuildSignature(gen.Function, gen.Inputs.String(), gen.Outputs.String())
	ident.InputSignatureHash = HashInputSignature(inputSignature)

	buffers, ok := this.resolveRefs(gen, gen.CBufferRefs.String(), "__shcb_", "constant buffer", nil)
	if !ok {
		return "", false
	}
	var constants strings.Builder
	if len(buffers) > 0 && !this.linker_.GenerateBufferDeclarations(buffers, &constants) {
		this.log_.Write(SEVERITY_ERROR, "Failed to generate final constant buffer declarations referenced by shader method '%s()' in '%s'.", gen.Function, this.script_.Name())
		return "", false
	}

	var samplers strings.Builder
	if stage == PIXEL_SHADER {
		var blocks []int
		v, found, err := this.call(gen, gen.Class, "__shsmp_"+kDefaultSamplerBlock)
		if h, isInt := v.(int); found && err == nil && isInt {
			blocks = append(blocks, h)
		}
		if blocks, ok = this.resolveRefs(gen, gen.SamplerRefs.String(), "__shsmp_", "sampler block", blocks); !ok {
			return "", false
		}
		this.linker_.GenerateSamplerDeclarations(blocks, &samplers)
	}

	var src strings.Builder
	if common != "" {
		src.WriteString(common + "\n")
	}
	if constants.Len() > 0 {
		src.WriteString(constants.String() + "\n")
	}
	src.WriteString(samplers.String())
	if gen.Globals.Len() > 0 {
		src.WriteString(gen.Globals.String() + "\n")
	}
	src.WriteString(signature)
	src.WriteString("\n{\n")
	src.WriteString(gen.Code.String())
	src.WriteString("\n}")

	text := src.String()
	if this.dump_.Enabled() {
		this.dump_.Shader(stage.String(), gen.Function, text)
		this.log_.Write(SEVERITY_INFO, "Emitting generated HLSL source code for %s '%s'.", stage, gen.Function)
	}
	return text, true
}
