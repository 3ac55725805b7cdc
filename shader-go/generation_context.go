package shader_go

import (
	"fmt"
	"strings"

	"github.com/edwingeng/deque"
)

// / State of one shader generation call: the accumulators filled by the
// / replacement blocks and the stack of code outputs used by shader call
// / functions. A context is not safe for concurrent use; generation requests
// / are serialized by the caller.
type GenerationContext struct {
	/// Generator method being run and the shader class that owns it.
	Function string
	Class    string

	Code        strings.Builder
	Inputs      strings.Builder
	Outputs     strings.Builder
	Globals     strings.Builder
	CBufferRefs strings.Builder
	SamplerRefs strings.Builder

	outputs_ deque.Deque // *strings.Builder
	globals_ *strings.Builder
	/// Instance number of the next generated shader call function.
	nextFunc_ int
}

func NewGenerationContext(function, class string) *GenerationContext {
	ret := GenerationContext{}
	ret.Function = function
	ret.Class = class
	ret.outputs_ = deque.NewDeque()
	ret.Reset()
	return &ret
}

// / Clear the accumulators and point code output back at the top level
// / code string.
func (this *GenerationContext) Reset() {
	this.Code.Reset()
	this.Inputs.Reset()
	this.Outputs.Reset()
	this.Globals.Reset()
	this.CBufferRefs.Reset()
	this.SamplerRefs.Reset()
	this.outputs_ = deque.NewDeque()
	this.outputs_.PushBack(&this.Code)
	this.globals_ = &this.Globals
	this.nextFunc_ = 0
}

func (this *GenerationContext) PushCodeOutput(out *strings.Builder) {
	this.outputs_.PushBack(out)
}

// / The top level output is never popped.
func (this *GenerationContext) PopCodeOutput() {
	if this.outputs_.Len() > 1 {
		this.outputs_.PopBack()
	}
}

func (this *GenerationContext) CodeOutputDepth() int { return this.outputs_.Len() }

// / __sh_code: append to the current code output.
func (this *GenerationContext) EmitCode(code string) {
	this.outputs_.Back().(*strings.Builder).WriteString(code)
}

func (this *GenerationContext) AddInput(decl string)      { this.Inputs.WriteString(decl) }
func (this *GenerationContext) AddOutput(decl string)     { this.Outputs.WriteString(decl) }
func (this *GenerationContext) AddGlobal(code string)     { this.globals_.WriteString(code) }
func (this *GenerationContext) AddCBufferRef(name string) { this.CBufferRefs.WriteString(name + ";") }
func (this *GenerationContext) AddSamplerRef(name string) { this.SamplerRefs.WriteString(name + ";") }

// / Emit a numbered instance of a shader call function into the globals
// / and return the native code calling it: "float4 lit(float3 n)" becomes
// / "float4 lit_0(float3 n)" and the call "lit_0(params)".
func (this *GenerationContext) GenerateShaderCall(declaration, function, params, body string) string {
	n := this.nextFunc_
	this.nextFunc_++

	paren := strings.IndexByte(declaration, '(')
	if paren < 0 {
		paren = len(declaration)
	}
	final := fmt.Sprintf("%s_%d%s", declaration[:paren], n, declaration[paren:])

	this.globals_.WriteString(final)
	this.globals_.WriteString("\n{\n")
	this.globals_.WriteString(body)
	this.globals_.WriteString("\n}\n\n")

	return fmt.Sprintf("%s_%d(%s)", function, n, params)
}

// / Run body with a private code output and turn what it emitted into a
// / shader call function instance. args are the native argument
// / expressions for the function's non script parameters.
func (this *GenerationContext) ShaderCall(desc *ShaderCallFunctionDesc, body func(gen *GenerationContext) error, args ...string) (string, error) {
	var local strings.Builder
	this.PushCodeOutput(&local)
	err := body(this)
	this.PopCodeOutput()
	if err != nil {
		return "", err
	}

	var params strings.Builder
	for i, a := range args {
		if i > 0 {
			params.WriteByte(',')
		}
		params.WriteString("(" + a + ")")
	}
	return this.GenerateShaderCall(desc.Declaration, desc.Name, params.String(), local.String()), nil
}
