package shader_go

import (
	"errors"

	"github.com/ahrtr/gocontainer/set"
)

// / A shader class of a loaded shader script whose generator methods
// / produce vertex and pixel shader permutations on demand.
// /
// / Generation runs inline on the calling goroutine. Requests must be
// / serialized by the caller.
type SurfaceShader struct {
	class_   string
	script_  *ShaderScript
	engine_  ScriptEngine
	manager_ *ResourceManager
	log_     Logger
	config_  *Config
	dump_    *DebugDump

	/// Per stage: hash names of the permutations that failed to generate
	/// or compile. They are not retried until the script is reloaded.
	failed_    [2]set.Interface
	assembler_ *CodeAssembler
}

func NewSurfaceShader(class string, script *ShaderScript, engine ScriptEngine, manager *ResourceManager, log Logger, config *Config, dump *DebugDump) *SurfaceShader {
	ret := SurfaceShader{}
	ret.class_ = class
	ret.script_ = script
	ret.engine_ = engine
	ret.manager_ = manager
	ret.log_ = log
	ret.config_ = config
	ret.dump_ = dump
	ret.failed_[VERTEX_SHADER] = set.New()
	ret.failed_[PIXEL_SHADER] = set.New()
	return &ret
}

func (this *SurfaceShader) Class() string         { return this.class_ }
func (this *SurfaceShader) Script() *ShaderScript { return this.script_ }

// / (Re)load the script of the surface shader. Failed permutations are
// / forgotten. In sandbox mode a missing script is tolerated: the shader
// / exists but stays unresolved and generates nothing.
func (this *SurfaceShader) Load(disk DiskInterface, tok Tokenizer) bool {
	this.failed_[VERTEX_SHADER].Clear()
	this.failed_[PIXEL_SHADER].Clear()
	this.assembler_ = nil

	status := this.script_.Load(this.engine_, disk, tok, this.log_, this.config_)
	if status == LOAD_NOT_FOUND && this.config_.Sandbox {
		this.log_.Write(SEVERITY_WARNING, "Shader script '%s' not found; surface shader '%s' left unresolved.", this.script_.Name(), this.class_)
		return true
	}
	return status == LOAD_SUCCESS
}

// / Whether the permutation is known to fail for the current script.
func (this *SurfaceShader) IsFailed(stage ShaderStage, ident *ShaderIdentifier) bool {
	return this.failed_[stage].Contains(ident.HashName())
}

func (this *SurfaceShader) FailedCount(stage ShaderStage) int { return this.failed_[stage].Size() }

func (this *SurfaceShader) GetVertexShader(function string, args ...ScriptArgument) *ShaderHandle {
	return this.GetShader(VERTEX_SHADER, function, args...)
}

func (this *SurfaceShader) GetPixelShader(function string, args ...ScriptArgument) *ShaderHandle {
	return this.GetShader(PIXEL_SHADER, function, args...)
}

func (this *SurfaceShader) fail(stage ShaderStage, ident *ShaderIdentifier) *ShaderHandle {
	this.failed_[stage].Add(ident.HashName())
	this.manager_.RecordFailure(stage, ident)
	return nil
}

// / Return the permutation of the generator method function for args,
// / generating and compiling it on first use. Returns nil if the
// / permutation cannot be produced; a permutation that failed once fails
// / fast afterwards without running the generator again.
// /
// / The returned handle holds a reference that the caller releases.
func (this *SurfaceShader) GetShader(stage ShaderStage, function string, args ...ScriptArgument) *ShaderHandle {
	defer METRIC_RECORD("get shader")()
	if !this.script_.IsResolved() {
		return nil
	}

	ident := NewShaderIdentifier(function, this.class_, args, this.script_.SourceFiles())
	if h := this.manager_.FindResident(stage, ident); h != nil {
		return h
	}
	if this.IsFailed(stage, ident) {
		return nil
	}
	if h := this.manager_.loadCached(stage, ident); h != nil {
		return h
	}

	gen := NewGenerationContext(function, this.class_)
	r := Resolve(this.engine_, this.script_.Name(), this.class_, function)
	if r.Scope == NOT_FOUND {
		this.log_.Write(SEVERITY_ERROR, "Unable to find surface shader method '%s()' in '%s'.", function, this.script_.Name())
		return this.fail(stage, ident)
	}
	v, err := CallScript(r.Func, gen, args)
	if err != nil {
		var execErr *ExecuteError
		if !errors.As(err, &execErr) {
			execErr = &ExecuteError{Description: err.Error()}
		}
		this.log_.Write(SEVERITY_ERROR, "Failed to execute surface shader method '%s()' when compiling %s shader from '%s'. The engine reported the following error: %s.",
			function, stageName(stage), this.script_.Name(), execErr)
		return this.fail(stage, ident)
	}
	if ok, isBool := v.(bool); isBool && !ok {
		// The generator logs its own reason.
		return this.fail(stage, ident)
	}

	if this.assembler_ == nil {
		this.assembler_ = NewCodeAssembler(this.script_, this.engine_, this.log_, this.dump_)
	}
	source, ok := this.assembler_.Assemble(stage, gen, ident)
	if !ok {
		return this.fail(stage, ident)
	}

	h := this.manager_.CreateShader(stage, ident, source, function)
	if h == nil {
		this.failed_[stage].Add(ident.HashName())
		return nil
	}
	h.SetDestroyDelay(this.config_.DestroyDelay)
	return h
}

func stageName(stage ShaderStage) string {
	if stage == PIXEL_SHADER {
		return "pixel"
	}
	return "vertex"
}
