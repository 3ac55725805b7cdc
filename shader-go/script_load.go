package shader_go

// / Definitions in effect for a load: the configured ones plus the shader
// / model macro the code assembler keys on.
func EffectiveDefinitions(config *Config) map[string]string {
	ret := make(map[string]string, len(config.Definitions)+1)
	for k, v := range config.Definitions {
		ret[k] = v
	}
	if config.ShaderModel >= SHADER_MODEL_4 {
		if _, ok := ret["DX10"]; !ok {
			ret["DX11"] = "1"
		}
	}
	return ret
}

// / Load or reload the script. Everything collected by a previous load is
// / dropped first. The script engine module is built and the descriptor
// / accessors produced by the replacement blocks are bound to it.
// /
// / Returns LOAD_NOT_FOUND when the top level file does not exist; the
// / script is then left unresolved.
func (this *ShaderScript) Load(engine ScriptEngine, disk DiskInterface, tok Tokenizer, log Logger, config *Config) LoadStatus {
	defer METRIC_RECORD("script load")()

	engine.DiscardModule(this.name_)
	this.Clear()
	this.definitions_ = EffectiveDefinitions(config)

	pp := NewPreprocessor(tok, disk, engine, log, config)
	if status := pp.Process(this, this.name_, this.definitions_); status != LOAD_SUCCESS {
		engine.DiscardModule(this.name_)
		return status
	}
	this.macros_ = pp.Macros().Map()

	var err string
	if !engine.Build(this.name_, &err) {
		log.Write(SEVERITY_ERROR, "Failed to build script '%s'. %s", this.name_, err)
		engine.DiscardModule(this.name_)
		return LOAD_ERROR
	}
	this.bindAccessors(engine)
	this.resolved_ = true
	return LOAD_SUCCESS
}

func (this *ShaderScript) bind(engine ScriptEngine, namespace, name string, f ScriptFunc) {
	if namespace != "" {
		engine.BindMethod(this.name_, namespace, name, f)
	} else {
		engine.BindFunction(this.name_, name, f)
	}
}

func constantFunc(v interface{}) ScriptFunc {
	return func(*GenerationContext, []ScriptArgument) (interface{}, error) { return v, nil }
}

// __shcb_NAME and __shsmp_NAME return descriptor handles, __shcmn the
// common code of its namespace.
func (this *ShaderScript) bindAccessors(engine ScriptEngine) {
	for h, cb := range this.cbuffers_ {
		this.bind(engine, cb.ParentNamespace, "__shcb_"+cb.Name, constantFunc(h))
	}
	for h, sb := range this.samplerBlocks_ {
		this.bind(engine, sb.ParentNamespace, "__shsmp_"+sb.Name, constantFunc(h))
	}
	for ns, code := range this.commonCode_ {
		this.bind(engine, ns, "__shcmn", constantFunc(code))
	}
}
