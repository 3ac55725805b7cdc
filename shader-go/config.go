package shader_go

import (
	"fmt"
	"strings"
	"time"
)

// / Target shader model for generated sampler declarations.
type ShaderModel int8

const (
	SHADER_MODEL_3 ShaderModel = 3
	SHADER_MODEL_4 ShaderModel = 4
)

func ParseShaderModel(s string) (ShaderModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "3", "sm3", "ps_3_0", "vs_3_0":
		return SHADER_MODEL_3, nil
	case "4", "sm4", "ps_4_0", "vs_4_0":
		return SHADER_MODEL_4, nil
	}
	return SHADER_MODEL_4, fmt.Errorf("unknown shader model '%s'", s)
}

const kDefaultSystemDefinitions = "sys://Shaders/SystemDefs.shh"
const kDefaultDestroyDelay = 60 * time.Second

type Config struct {
	/// Logical name of the system definitions included by every shader
	/// script. Empty disables the include.
	SystemDefinitions string
	/// Write preprocessed scripts and generated shaders under Build/.
	DebugDump bool
	/// Tolerate missing script files.
	Sandbox bool
	ShaderModel ShaderModel
	/// Directory holding compiled permutations.
	CacheDir string
	/// Shared cache server ("host:port"); empty when not used.
	Remote string
	/// Idle time after which a resident shader is released.
	DestroyDelay time.Duration
	/// Application definitions handed to every preprocessing session.
	Definitions map[string]string
}

func NewConfig() *Config {
	ret := Config{}
	ret.SystemDefinitions = kDefaultSystemDefinitions
	ret.ShaderModel = SHADER_MODEL_4
	ret.CacheDir = "Cache/Shaders"
	ret.DestroyDelay = kDefaultDestroyDelay
	ret.Definitions = map[string]string{}
	return &ret
}

// / Add a "-D NAME[=VALUE]" style definition.
func (this *Config) Define(arg string) error {
	name, value, _ := strings.Cut(arg, "=")
	if !IsValidMacro(name) {
		return fmt.Errorf("invalid definition name '%s'", name)
	}
	this.Definitions[strings.TrimSpace(name)] = value
	return nil
}
