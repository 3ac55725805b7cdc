package shader_go

import (
	"errors"
	"runtime"
	"testing"
)

const kSurfaceScript = `class Mat
{
<?cbuffer PerMat
float4 tint;
?>
}
`

type surfaceShaderTest struct {
	resourceManagerTest
	engine *FuncEngine
	calls  int
	shader *SurfaceShader
}

// A surface shader for class Mat of fx.sh. generate backs the psMain
// generator method.
func newSurfaceShaderTest(t *testing.T, generate ScriptFunc) *surfaceShaderTest {
	ret := surfaceShaderTest{resourceManagerTest: *newResourceManagerTest()}
	ret.config.SystemDefinitions = ""
	ret.disk.Create("fx.sh", kSurfaceScript)
	ret.engine = NewFuncEngine()
	ret.engine.RegisterMethod("fx.sh", "Mat", "psMain", func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
		ret.calls++
		return generate(gen, args)
	})
	script := NewShaderScript("fx.sh", SCRIPT_KIND_SHADER)
	ret.shader = NewSurfaceShader("Mat", script, ret.engine, ret.manager, ret.log, ret.config, nil)
	if !ret.shader.Load(ret.disk, NewScriptTokenizer()) {
		t.Fatalf("load: %q", ret.log.Lines)
	}
	return &ret
}

func tintGenerator(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
	gen.AddOutput("float4 c : SV_Target;")
	gen.AddCBufferRef("PerMat")
	if len(args) > 0 && args[0].Bool() {
		gen.EmitCode("c = tint;")
	} else {
		gen.EmitCode("c = 0;")
	}
	return true, nil
}

func TestSurfaceShaderGenerate(t *testing.T) {
	p := newSurfaceShaderTest(t, tintGenerator)
	h := p.shader.GetPixelShader("psMain", BoolArg(true))
	if h == nil {
		t.Fatalf("no shader: %q", p.log.Lines)
	}
	if h.Entry != "psMain" || h.Stage != PIXEL_SHADER || h.Identifier.ShaderIdentifier != "psMain::Mat" {
		t.Errorf("handle %+v", h)
	}

	again := p.shader.GetPixelShader("psMain", BoolArg(true))
	if again != h || p.calls != 1 {
		t.Errorf("second request generated again (%d calls)", p.calls)
	}
	if other := p.shader.GetPixelShader("psMain", BoolArg(false)); other == nil || other == h || p.calls != 2 {
		t.Errorf("permutation not keyed on arguments")
	}
	h.Release()
	again.Release()
	if h.RefCount() != 0 {
		t.Errorf("refs %d", h.RefCount())
	}
}

func TestSurfaceShaderDestroyDelay(t *testing.T) {
	p := newSurfaceShaderTest(t, tintGenerator)
	p.config.DestroyDelay = 0
	p.shader.GetPixelShader("psMain").Release()
	if n := p.manager.Sweep(); n != 1 {
		t.Errorf("swept %d", n)
	}
}

func TestSurfaceShaderFailures(t *testing.T) {
	tests := []struct {
		name     string
		generate ScriptFunc
		function string
		msg      string
	}{
		{
			name: "generator declines",
			generate: func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
				return false, nil
			},
			function: "psMain",
		},
		{
			name: "execute error",
			generate: func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
				panic(&ExecuteError{Section: "fx.sh", Line: 3, Description: "Null pointer access"})
			},
			function: "psMain",
			msg:      "Failed to execute surface shader method 'psMain()' when compiling pixel shader from 'fx.sh'. The engine reported the following error: fx.sh (3): Null pointer access.",
		},
		{
			name: "returned error",
			generate: func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
				return nil, errors.New("bad argument")
			},
			function: "psMain",
			msg:      "The engine reported the following error: bad argument.",
		},
		{
			name:     "missing method",
			generate: tintGenerator,
			function: "nope",
			msg:      "Unable to find surface shader method 'nope()' in 'fx.sh'.",
		},
		{
			name: "compile failure",
			generate: func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
				gen.EmitCode("if (x) {")
				return true, nil
			},
			function: "psMain",
			msg:      "Failed to compile ps shader 'psMain::Mat'.",
		},
		{
			name: "unresolved buffer",
			generate: func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
				gen.AddCBufferRef("Nope")
				return true, nil
			},
			function: "psMain",
			msg:      "Unresolved constant buffer symbol 'Nope'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSurfaceShaderTest(t, tt.generate)
			if p.shader.GetPixelShader(tt.function, IntArg(4)) != nil {
				t.Fatal("got a shader")
			}
			if tt.msg != "" && !p.log.Contains(tt.msg) {
				t.Errorf("log %q, want %q", p.log.Lines, tt.msg)
			}
			calls := p.calls
			if p.shader.GetPixelShader(tt.function, IntArg(4)) != nil || p.calls != calls {
				t.Error("failed permutation retried")
			}
			ident := NewShaderIdentifier(tt.function, "Mat", []ScriptArgument{IntArg(4)}, p.shader.Script().SourceFiles())
			if !p.shader.IsFailed(PIXEL_SHADER, ident) || p.shader.IsFailed(VERTEX_SHADER, ident) {
				t.Error("failure not recorded for the permutation")
			}
			if p.shader.FailedCount(PIXEL_SHADER) != 1 || p.shader.FailedCount(VERTEX_SHADER) != 0 {
				t.Errorf("failed %d", p.shader.FailedCount(PIXEL_SHADER))
			}
			if s := p.manager.Stats(); s.Failures != 1 {
				t.Errorf("stats %+v", s)
			}

			// A reload forgets failures.
			if !p.shader.Load(p.disk, NewScriptTokenizer()) || p.shader.FailedCount(PIXEL_SHADER) != 0 {
				t.Error("reload kept failures")
			}
		})
	}
}

func TestSurfaceShaderFailedSkipsSharedCache(t *testing.T) {
	srv, remote := startMemoryCacheServer(t)
	srv.setFailing(true)
	p := newSurfaceShaderTest(t, func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
		return false, nil
	})
	p.manager.SetRemote(remote)
	if p.shader.GetPixelShader("psMain", IntArg(4)) != nil {
		t.Fatal("got a shader")
	}
	logged := len(p.log.Lines)
	if !p.log.Contains("Shared shader cache 'http://cache.test:8080' unavailable.") {
		t.Errorf("log %q", p.log.Lines)
	}
	for i := 0; i < 2; i++ {
		if p.shader.GetPixelShader("psMain", IntArg(4)) != nil {
			t.Fatal("got a shader")
		}
	}
	if p.calls != 1 || len(p.log.Lines) != logged {
		t.Errorf("%d generator calls, log %q", p.calls, p.log.Lines)
	}
}

const kLitScript = `class Lit
{
}
`

func TestSurfaceShaderVertexPermutations(t *testing.T) {
	p := newResourceManagerTest()
	p.config.SystemDefinitions = ""
	p.disk.Create("lit.sh", kLitScript)
	engine := NewFuncEngine()
	calls := 0
	engine.RegisterMethod("lit.sh", "Lit", "main", func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
		calls++
		gen.AddInput("float3 p : POSITION;")
		gen.AddOutput("float4 o : SV_Position;")
		if args[1].Bool() {
			gen.EmitCode("o = float4(p, 1);")
		} else {
			gen.EmitCode("o = float4(p, 0);")
		}
		return true, nil
	})
	shader := NewSurfaceShader("Lit", NewShaderScript("lit.sh", SCRIPT_KIND_SHADER), engine, p.manager, p.log, p.config, nil)
	if !shader.Load(p.disk, NewScriptTokenizer()) {
		t.Fatalf("load: %q", p.log.Lines)
	}
	on := shader.GetVertexShader("main", IntArg(1), BoolArg(true))
	off := shader.GetVertexShader("main", IntArg(1), BoolArg(false))
	if on == nil || off == nil || on == off {
		t.Fatalf("handles %p %p: %q", on, off, p.log.Lines)
	}
	if shader.GetVertexShader("main", IntArg(1), BoolArg(true)) != on || shader.GetVertexShader("main", IntArg(1), BoolArg(false)) != off {
		t.Error("permutations not cached")
	}
	if calls != 2 || p.manager.ResidentCount() != 2 {
		t.Errorf("%d generator calls, %d resident", calls, p.manager.ResidentCount())
	}
}

func TestSurfaceShaderGlobalGenerator(t *testing.T) {
	p := newSurfaceShaderTest(t, tintGenerator)
	p.engine.RegisterFunction("fx.sh", "vsMain", func(gen *GenerationContext, args []ScriptArgument) (interface{}, error) {
		gen.AddInput("float3 p : POSITION;")
		gen.AddOutput("float4 o : SV_Position;")
		gen.EmitCode("o = float4(p, 1);")
		return nil, nil
	})
	h := p.shader.GetVertexShader("vsMain")
	if h == nil {
		t.Fatalf("no shader: %q", p.log.Lines)
	}
	if h.Identifier.InputSignatureHash != HashInputSignature("float3 POSITION") {
		t.Error("input signature hash")
	}
}

func TestSurfaceShaderMissingScript(t *testing.T) {
	for _, sandbox := range []bool{false, true} {
		p := newResourceManagerTest()
		p.config.SystemDefinitions = ""
		p.config.Sandbox = sandbox
		shader := NewSurfaceShader("Mat", NewShaderScript("missing.sh", SCRIPT_KIND_SHADER), NewFuncEngine(), p.manager, p.log, p.config, nil)
		if got := shader.Load(p.disk, NewScriptTokenizer()); got != sandbox {
			t.Errorf("sandbox %t: Load = %t", sandbox, got)
		}
		if shader.Script().IsResolved() || shader.GetPixelShader("psMain") != nil {
			t.Errorf("sandbox %t: unresolved script produced a shader", sandbox)
		}
		if sandbox && !p.log.Contains("Shader script 'missing.sh' not found; surface shader 'Mat' left unresolved.") {
			t.Errorf("log %q", p.log.Lines)
		}
	}
}

func TestResolve(t *testing.T) {
	engine := NewFuncEngine()
	f := func(*GenerationContext, []ScriptArgument) (interface{}, error) { return nil, nil }
	engine.RegisterMethod("m", "C", "a", f)
	engine.RegisterFunction("m", "a", f)
	engine.RegisterFunction("m", "b", f)
	tests := []struct {
		class, name string
		want        ResolveScope
	}{
		{"C", "a", FOUND_IN_CLASS},
		{"C", "b", FOUND_IN_GLOBAL},
		{"", "a", FOUND_IN_GLOBAL},
		{"C", "c", NOT_FOUND},
		{"D", "a", FOUND_IN_GLOBAL},
	}
	for _, tt := range tests {
		if got := Resolve(engine, "m", tt.class, tt.name).Scope; got != tt.want {
			t.Errorf("Resolve(%s, %s) = %s, want %s", tt.class, tt.name, got, tt.want)
		}
	}
}

func TestCallScriptRecovers(t *testing.T) {
	_, err := CallScript(func(*GenerationContext, []ScriptArgument) (interface{}, error) {
		panic("Null pointer access")
	}, nil, nil)
	var execErr *ExecuteError
	if !errors.As(err, &execErr) || execErr.Description != "Null pointer access" {
		t.Errorf("err = %v", err)
	}
}

func TestCallScriptRuntimeErrorPanics(t *testing.T) {
	defer func() {
		if _, ok := recover().(runtime.Error); !ok {
			t.Error("runtime error not raised again")
		}
	}()
	CallScript(func(*GenerationContext, []ScriptArgument) (interface{}, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	}, nil, nil)
	t.Error("CallScript returned")
}

func TestFuncEngineModules(t *testing.T) {
	engine := NewFuncEngine()
	f := func(*GenerationContext, []ScriptArgument) (interface{}, error) { return 1, nil }
	engine.RegisterFunction("m", "host", f)
	var err string
	if !engine.AddScriptSection("m", "a", "void f() { }", &err) || !engine.Build("m", &err) {
		t.Fatal(err)
	}
	engine.BindFunction("m", "bound", f)
	if engine.Function("m", "bound") == nil || engine.Function("m", "host") == nil {
		t.Fatal("functions missing")
	}
	engine.DiscardModule("m")
	if engine.Function("m", "bound") != nil || engine.Function("m", "host") == nil || len(engine.Sections("m")) != 0 {
		t.Error("discard")
	}

	if !engine.AddScriptSection("m", "b", "void f() {\n}\n}", &err) || engine.Build("m", &err) {
		t.Error("unbalanced section built")
	}
}
