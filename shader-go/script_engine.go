package shader_go

import (
	"fmt"
	"runtime"
	"strings"
)

// / A callable exposed by a built script module. Generator methods return a
// / bool, the descriptor accessors return the descriptor handle as an int and
// / the common code accessors return a string.
type ScriptFunc func(gen *GenerationContext, args []ScriptArgument) (interface{}, error)

// / Raised by script code at execution time. It is the only failure that is
// / allowed to cross the generation boundary.
type ExecuteError struct {
	Section     string
	Line        int
	Description string
}

func (this *ExecuteError) Error() string {
	if this.Section == "" {
		return this.Description
	}
	return fmt.Sprintf("%s (%d): %s", this.Section, this.Line, this.Description)
}

// / The script virtual machine as seen by the preprocessor and the surface
// / shader. Modules are named after the script resource that owns them.
type ScriptEngine interface {
	/// Add preprocessed code to a module, creating the module if needed.
	AddScriptSection(module, section, code string, err *string) bool
	/// Build every section added since the last discard.
	Build(module string, err *string) bool
	/// Drop the module's sections and everything bound by its last build.
	DiscardModule(module string)
	Function(module, name string) ScriptFunc
	Method(module, class, name string) ScriptFunc
	/// Bind a module level function produced by a build.
	BindFunction(module, name string, f ScriptFunc)
	/// Bind a class method produced by a build.
	BindMethod(module, class, name string, f ScriptFunc)
}

type ResolveScope int8

const (
	NOT_FOUND ResolveScope = iota
	FOUND_IN_CLASS
	FOUND_IN_GLOBAL
)

func (this ResolveScope) String() string {
	switch this {
	case FOUND_IN_CLASS:
		return "class"
	case FOUND_IN_GLOBAL:
		return "global"
	}
	return "not found"
}

type ResolveResult struct {
	Scope ResolveScope
	Func  ScriptFunc
}

// / Find name as a method of class first, then as a module level function.
// / An empty class skips straight to the global scope.
func Resolve(engine ScriptEngine, module, class, name string) ResolveResult {
	if class != "" {
		if f := engine.Method(module, class, name); f != nil {
			return ResolveResult{Scope: FOUND_IN_CLASS, Func: f}
		}
	}
	if f := engine.Function(module, name); f != nil {
		return ResolveResult{Scope: FOUND_IN_GLOBAL, Func: f}
	}
	return ResolveResult{Scope: NOT_FOUND}
}

// / Run f, turning a panic raised from script code into an *ExecuteError.
// / Runtime errors are bugs in the host and panic again.
func CallScript(f ScriptFunc, gen *GenerationContext, args []ScriptArgument) (ret interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*ExecuteError); ok {
				err = e
				return
			}
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			err = &ExecuteError{Description: fmt.Sprint(r)}
		}
	}()
	return f(gen, args)
}

type scriptModule struct {
	sections_ []ScriptSection
	built_    bool
	funcs_    map[string]ScriptFunc
	methods_  map[string]ScriptFunc
}

func newScriptModule() *scriptModule {
	ret := scriptModule{}
	ret.funcs_ = map[string]ScriptFunc{}
	ret.methods_ = map[string]ScriptFunc{}
	return &ret
}

// / A ScriptEngine whose functions are implemented in Go. Host functions
// / registered with RegisterFunction / RegisterMethod stand in for the
// / compiled script code and survive a module discard; bindings made after a
// / build do not.
type FuncEngine struct {
	modules_ map[string]*scriptModule
	host_    map[string]*scriptModule
}

func NewFuncEngine() *FuncEngine {
	ret := FuncEngine{}
	ret.modules_ = map[string]*scriptModule{}
	ret.host_ = map[string]*scriptModule{}
	return &ret
}

func methodKey(class, name string) string { return class + "::" + name }

func (this *FuncEngine) module(name string) *scriptModule {
	m, ok := this.modules_[name]
	if !ok {
		m = newScriptModule()
		this.modules_[name] = m
	}
	return m
}

func (this *FuncEngine) hostModule(name string) *scriptModule {
	m, ok := this.host_[name]
	if !ok {
		m = newScriptModule()
		this.host_[name] = m
	}
	return m
}

func (this *FuncEngine) RegisterFunction(module, name string, f ScriptFunc) {
	this.hostModule(module).funcs_[name] = f
}

func (this *FuncEngine) RegisterMethod(module, class, name string, f ScriptFunc) {
	this.hostModule(module).methods_[methodKey(class, name)] = f
}

func (this *FuncEngine) AddScriptSection(module, section, code string, err *string) bool {
	m := this.module(module)
	if m.built_ {
		*err = fmt.Sprintf("module '%s' is already built", module)
		return false
	}
	m.sections_ = append(m.sections_, ScriptSection{Name: section, Code: code})
	return true
}

// / Building checks that every section has balanced braces, which is all a
// / host implemented module can verify about the text.
func (this *FuncEngine) Build(module string, err *string) bool {
	m := this.module(module)
	for _, s := range m.sections_ {
		if line, ok := checkBraces(s.Code); !ok {
			*err = (&ExecuteError{Section: s.Name, Line: line, Description: "unbalanced braces"}).Error()
			return false
		}
	}
	m.built_ = true
	return true
}

func (this *FuncEngine) DiscardModule(module string) {
	delete(this.modules_, module)
}

func (this *FuncEngine) Sections(module string) []ScriptSection {
	if m, ok := this.modules_[module]; ok {
		return m.sections_
	}
	return nil
}

func (this *FuncEngine) BindFunction(module, name string, f ScriptFunc) {
	this.module(module).funcs_[name] = f
}

func (this *FuncEngine) BindMethod(module, class, name string, f ScriptFunc) {
	this.module(module).methods_[methodKey(class, name)] = f
}

func (this *FuncEngine) Function(module, name string) ScriptFunc {
	if m, ok := this.modules_[module]; ok {
		if f, ok := m.funcs_[name]; ok {
			return f
		}
	}
	if m, ok := this.host_[module]; ok {
		return m.funcs_[name]
	}
	return nil
}

func (this *FuncEngine) Method(module, class, name string) ScriptFunc {
	key := methodKey(class, name)
	if m, ok := this.modules_[module]; ok {
		if f, ok := m.methods_[key]; ok {
			return f
		}
	}
	if m, ok := this.host_[module]; ok {
		return m.methods_[key]
	}
	return nil
}

// Returns the 1-based line of the first unbalanced closing brace, or of the
// end of the text when braces remain open. String literals and comments are
// skipped.
func checkBraces(code string) (int, bool) {
	tok := NewScriptTokenizer()
	depth, line := 0, 1
	src := []byte(code)
	for pos := 0; pos < len(src); {
		class, n := tok.ParseToken(src[pos:])
		if n <= 0 {
			n = 1
		}
		text := src[pos : pos+n]
		if class == TOKEN_KEYWORD && n == 1 {
			switch text[0] {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					return line, false
				}
			}
		}
		line += strings.Count(string(text), "\n")
		pos += n
	}
	return line, depth == 0
}
