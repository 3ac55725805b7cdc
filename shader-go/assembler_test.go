package shader_go

import (
	"reflect"
	"strings"
	"testing"
)

// Load src as the shader script "main.sh" through a FuncEngine.
func loadShaderScript(t *testing.T, src string, model ShaderModel) (*ShaderScript, *FuncEngine, *RecordingLogger) {
	t.Helper()
	disk := NewVirtualDisk()
	disk.Create("main.sh", src)
	engine := NewFuncEngine()
	log := &RecordingLogger{}
	config := NewConfig()
	config.SystemDefinitions = ""
	config.ShaderModel = model
	script := NewShaderScript("main.sh", SCRIPT_KIND_SHADER)
	if status := script.Load(engine, disk, NewScriptTokenizer(), log, config); status != LOAD_SUCCESS {
		t.Fatalf("load: %s %q", status, log.Lines)
	}
	return script, engine, log
}

func TestSplitDeclarations(t *testing.T) {
	got := splitDeclarations("float3 p : POSITION;\n  // note\n;float2 uv : TEXCOORD0\n")
	want := []string{"float3 p : POSITION", "float2 uv : TEXCOORD0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInputSignatureEntry(t *testing.T) {
	tests := []struct {
		decl string
		want string
		ok   bool
	}{
		{"float3 p : POSITION", "float3 POSITION", true},
		{"float4 weights[2] : BLENDWEIGHT", "float4[2] BLENDWEIGHT", true},
		{"float3 p", "", false},
		{"float3", "", false},
	}
	for _, tt := range tests {
		got, ok := inputSignatureEntry(tt.decl)
		if got != tt.want || ok != tt.ok {
			t.Errorf("inputSignatureEntry(%q) = %q %t, want %q %t", tt.decl, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildSignature(t *testing.T) {
	tests := []struct {
		name    string
		inputs  string
		outputs string
		sig     string
		isig    string
	}{
		{
			name:    "inputs and outputs",
			inputs:  "float3 p : POSITION;float2 uv : TEXCOORD0;",
			outputs: "float4 o : SV_Target;",
			sig:     "void f(float3 p : POSITION, float2 uv : TEXCOORD0, out float4 o : SV_Target)",
			isig:    "float3 POSITION,float2 TEXCOORD0",
		},
		{
			name:    "outputs only",
			outputs: "float4 pos : SV_Position;\nfloat2 uv : TEXCOORD0;",
			sig:     "void f(out float4 pos : SV_Position, out float2 uv : TEXCOORD0)",
		},
		{
			name: "empty",
			sig:  "void f()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, isig := BuildSignature("f", tt.inputs, tt.outputs)
			if sig != tt.sig || isig != tt.isig {
				t.Errorf("got %q %q\nwant %q %q", sig, isig, tt.sig, tt.isig)
			}
		})
	}
}

func TestScriptShaderModel(t *testing.T) {
	script, _, _ := loadShaderScript(t, "int a;\n", SHADER_MODEL_3)
	if got := ScriptShaderModel(script); got != SHADER_MODEL_3 {
		t.Errorf("model %d", got)
	}
	script, _, _ = loadShaderScript(t, "int a;\n", SHADER_MODEL_4)
	if got := ScriptShaderModel(script); got != SHADER_MODEL_4 {
		t.Errorf("model %d", got)
	}
	script, _, _ = loadShaderScript(t, "#undef DX11\n#define DX10\n", SHADER_MODEL_3)
	if got := ScriptShaderModel(script); got != SHADER_MODEL_4 {
		t.Errorf("DX10 script model %d", got)
	}
}

const kLinkerScript = `<?ctype Light
float3 dir;
float intensity;
?>
<?ctype Rig
Light key;
float4x3 bones[2];
?>
<?cbuffer PerFrame : register(b1)
Rig rig;
float4 time : packoffset(c7);
?>
<?cbuffer PerObject : globaloffset(8)
matrix world;
float3 tint;
?>
<?samplers
Sampler2D diffuse : register(2);
Sampler2DCmp shadow;
SamplerCube env;
Sampler3DArray odd;
?>
`

func TestGenerateBufferDeclarationsModel4(t *testing.T) {
	script, _, _ := loadShaderScript(t, kLinkerScript, SHADER_MODEL_4)
	linker := NewConstantLinker(script, SHADER_MODEL_4)
	var out strings.Builder
	if !linker.GenerateBufferDeclarations([]int{0, 1}, &out) {
		t.Fatal("generation failed")
	}
	want := "struct Light\n{\n    float3 dir;\n    float intensity;\n};\n\n" +
		"struct Rig\n{\n    Light key;\n    float3x4 bones[2];\n};\n\n" +
		"cbuffer PerFrame : register(b1)\n{\n    Rig rig;\n    float4 time : packoffset(c7);\n};\n" +
		"cbuffer PerObject\n{\n    float4x4 world;\n    float3 tint;\n};\n"
	if out.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", out.String(), want)
	}

	out.Reset()
	if linker.GenerateBufferDeclarations([]int{5}, &out) {
		t.Error("unknown buffer handle accepted")
	}
}

func TestGenerateBufferDeclarationsModel3(t *testing.T) {
	script, _, _ := loadShaderScript(t, kLinkerScript, SHADER_MODEL_3)
	var out strings.Builder
	if !NewConstantLinker(script, SHADER_MODEL_3).GenerateBufferDeclarations([]int{1}, &out) {
		t.Fatal("generation failed")
	}
	if want := "float4x4 world : register(c8);\nfloat3 tint : register(c12);\n"; out.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestGenerateSamplerDeclarations(t *testing.T) {
	tests := []struct {
		model ShaderModel
		want  string
	}{
		{SHADER_MODEL_4, "Texture2D diffuseTex : register(t2);\nSamplerState diffuse : register(s2);\n" +
			"Texture2D shadowTex;\nSamplerComparisonState shadow;\n" +
			"TextureCube envTex;\nSamplerState env;\n"},
		{SHADER_MODEL_3, "texture diffuseTex : register(t2);\nSampler2D diffuse : register(s2);\n" +
			"texture shadowTex;\nSampler2DCmp shadow;\n" +
			"texture envTex;\nSamplerCube env;\n" +
			"texture oddTex;\nSampler3DArray odd;\n"},
	}
	for _, tt := range tests {
		script, _, _ := loadShaderScript(t, kLinkerScript, tt.model)
		var out strings.Builder
		NewConstantLinker(script, tt.model).GenerateSamplerDeclarations([]int{0, 9}, &out)
		if out.String() != tt.want {
			t.Errorf("model %d:\n%s\nwant:\n%s", tt.model, out.String(), tt.want)
		}
	}
}

const kAssembleScript = `class Mat
{
<?common float sq(float x) { return x * x; } ?>
<?cbuffer PerMat : register(b2)
float4 tint;
?>
<?samplers
Sampler2D diffuse : register(0);
?>
}
`

func TestCodeAssemblerAssemble(t *testing.T) {
	script, engine, log := loadShaderScript(t, kAssembleScript, SHADER_MODEL_4)
	gen := NewGenerationContext("psMain", "Mat")
	gen.AddInput("float2 uv : texcoord0;")
	gen.AddOutput("float4 c : SV_Target;")
	gen.AddCBufferRef("PerMat")
	gen.AddCBufferRef("PerMat")
	gen.AddSamplerRef(kDefaultSamplerBlock)
	gen.AddGlobal("static const float k = 2;")
	gen.EmitCode("c = tint * diffuseTex.Sample(diffuse, uv);")

	ident := NewShaderIdentifier("psMain", "Mat", nil, script.SourceFiles())
	src, ok := NewCodeAssembler(script, engine, log, nil).Assemble(PIXEL_SHADER, gen, ident)
	if !ok {
		t.Fatalf("assemble failed: %q", log.Lines)
	}

	parts := []string{
		" float sq(float x) { return x * x; } \n",
		"cbuffer PerMat : register(b2)\n{\n    float4 tint;\n};\n",
		"Texture2D diffuseTex : register(t0);\nSamplerState diffuse : register(s0);\n",
		"static const float k = 2;\n",
		"void psMain(float2 uv : texcoord0, out float4 c : SV_Target)\n{\nc = tint * diffuseTex.Sample(diffuse, uv);\n}",
	}
	last := -1
	for _, p := range parts {
		i := strings.Index(src, p)
		if i < 0 || i < last {
			t.Fatalf("part %q missing or out of order in:\n%s", p, src)
		}
		last = i
	}
	if strings.Count(src, "cbuffer PerMat") != 1 || strings.Count(src, "SamplerState diffuse") != 1 {
		t.Errorf("duplicated declarations:\n%s", src)
	}
	if ident.InputSignatureHash != HashInputSignature("float2 TEXCOORD0") {
		t.Error("input signature hash not set")
	}
}

func TestCodeAssemblerVertexSkipsSamplers(t *testing.T) {
	script, engine, log := loadShaderScript(t, kAssembleScript, SHADER_MODEL_4)
	gen := NewGenerationContext("vsMain", "Mat")
	gen.AddOutput("float4 pos : SV_Position;")
	ident := NewShaderIdentifier("vsMain", "Mat", nil, script.SourceFiles())
	src, ok := NewCodeAssembler(script, engine, log, nil).Assemble(VERTEX_SHADER, gen, ident)
	if !ok {
		t.Fatalf("assemble failed: %q", log.Lines)
	}
	if strings.Contains(src, "SamplerState") || strings.Contains(src, "cbuffer") {
		t.Errorf("unexpected declarations:\n%s", src)
	}
	if ident.InputSignatureHash != ([kSourceHashSize]byte{}) {
		t.Error("empty input signature hashed")
	}
}

func TestCodeAssemblerUnresolvedReference(t *testing.T) {
	script, engine, log := loadShaderScript(t, kAssembleScript, SHADER_MODEL_4)
	gen := NewGenerationContext("psMain", "Mat")
	gen.AddCBufferRef("Missing")
	ident := NewShaderIdentifier("psMain", "Mat", nil, script.SourceFiles())
	if _, ok := NewCodeAssembler(script, engine, log, nil).Assemble(PIXEL_SHADER, gen, ident); ok {
		t.Fatal("assemble succeeded")
	}
	if !log.Contains("Unresolved constant buffer symbol 'Missing' referenced by shader method 'psMain()' in 'main.sh'.") {
		t.Errorf("log %q", log.Lines)
	}
}
