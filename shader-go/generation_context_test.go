package shader_go

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerationContextCodeOutputs(t *testing.T) {
	gen := NewGenerationContext("main", "Mat")
	gen.EmitCode("a;")

	var local strings.Builder
	gen.PushCodeOutput(&local)
	gen.EmitCode("b;")
	if gen.CodeOutputDepth() != 2 {
		t.Errorf("depth %d", gen.CodeOutputDepth())
	}
	gen.PopCodeOutput()
	gen.PopCodeOutput()
	gen.PopCodeOutput()
	gen.EmitCode("c;")

	if gen.Code.String() != "a;c;" || local.String() != "b;" {
		t.Errorf("code %q local %q", gen.Code.String(), local.String())
	}
	if gen.CodeOutputDepth() != 1 {
		t.Errorf("top level output popped: depth %d", gen.CodeOutputDepth())
	}
}

func TestGenerationContextAccumulators(t *testing.T) {
	gen := NewGenerationContext("main", "")
	gen.AddInput("float3 p : POSITION;")
	gen.AddOutput("float4 c : SV_Target;")
	gen.AddGlobal("static float k;")
	gen.AddCBufferRef("PerFrame")
	gen.AddCBufferRef("PerObject")
	gen.AddSamplerRef("Material")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"inputs", gen.Inputs.String(), "float3 p : POSITION;"},
		{"outputs", gen.Outputs.String(), "float4 c : SV_Target;"},
		{"globals", gen.Globals.String(), "static float k;"},
		{"cbuffer refs", gen.CBufferRefs.String(), "PerFrame;PerObject;"},
		{"sampler refs", gen.SamplerRefs.String(), "Material;"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	gen.EmitCode("x")
	gen.PushCodeOutput(&strings.Builder{})
	gen.Reset()
	if gen.Code.Len() != 0 || gen.Inputs.Len() != 0 || gen.CBufferRefs.Len() != 0 || gen.CodeOutputDepth() != 1 {
		t.Error("Reset left state behind")
	}
}

func TestGenerateShaderCall(t *testing.T) {
	gen := NewGenerationContext("main", "")
	first := gen.GenerateShaderCall("float4 lit(float3 n)", "lit", "(N)", "return float4(n, 1);")
	second := gen.GenerateShaderCall("float4 lit(float3 n)", "lit", "(M)", "return 0;")
	if first != "lit_0((N))" || second != "lit_1((M))" {
		t.Errorf("calls %q %q", first, second)
	}
	want := "float4 lit_0(float3 n)\n{\nreturn float4(n, 1);\n}\n\n" +
		"float4 lit_1(float3 n)\n{\nreturn 0;\n}\n\n"
	if gen.Globals.String() != want {
		t.Errorf("globals:\n%s\nwant:\n%s", gen.Globals.String(), want)
	}
}

func TestShaderCall(t *testing.T) {
	desc := &ShaderCallFunctionDesc{Name: "fog", Declaration: "float3 fog(float3 c,float d)"}
	gen := NewGenerationContext("main", "")
	gen.EmitCode("float3 r = ")

	call, err := gen.ShaderCall(desc, func(gen *GenerationContext) error {
		gen.EmitCode("return lerp(c, 0, d);")
		return nil
	}, "color.rgb", "depth")
	if err != nil {
		t.Fatal(err)
	}
	gen.EmitCode(call + ";")

	if got, want := gen.Code.String(), "float3 r = fog_0((color.rgb),(depth));"; got != want {
		t.Errorf("code %q, want %q", got, want)
	}
	if !strings.Contains(gen.Globals.String(), "float3 fog_0(float3 c,float d)\n{\nreturn lerp(c, 0, d);\n}") {
		t.Errorf("globals %q", gen.Globals.String())
	}

	boom := errors.New("boom")
	if _, err := gen.ShaderCall(desc, func(gen *GenerationContext) error {
		gen.EmitCode("lost")
		return boom
	}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if gen.CodeOutputDepth() != 1 || strings.Contains(gen.Code.String(), "lost") {
		t.Error("failed shader call leaked its output")
	}
}
