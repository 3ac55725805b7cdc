package shader_go

import (
	"fmt"
	"strings"
)

// / Generates native declarations for the constant buffers, user defined
// / types and sampler blocks of a script. Type declarations are generated
// / once per linker and reused.
type ConstantLinker struct {
	script_ *ShaderScript
	model_  ShaderModel
	/// Type handle -> generated struct declaration.
	typeCode_ map[int]string
}

func NewConstantLinker(script *ShaderScript, model ShaderModel) *ConstantLinker {
	ret := ConstantLinker{}
	ret.script_ = script
	ret.model_ = model
	ret.typeCode_ = map[int]string{}
	return &ret
}

// / Native type of a constant. Matrices are declared column major, so
// / rows and columns swap relative to the descriptor.
func nativeTypeName(c *ConstantDesc) string {
	if c.IsUDT {
		return c.PrimitiveTypeName
	}
	switch {
	case c.Columns > 1 && c.Rows > 1:
		return fmt.Sprintf("%s%dx%d", c.PrimitiveTypeName, c.Columns, c.Rows)
	case c.Rows > 1:
		return fmt.Sprintf("%s1x%d", c.PrimitiveTypeName, c.Rows)
	case c.Columns > 1:
		return fmt.Sprintf("%s%d", c.PrimitiveTypeName, c.Columns)
	}
	return c.PrimitiveTypeName
}

func writeConstant(out *strings.Builder, c *ConstantDesc) {
	out.WriteString(nativeTypeName(c))
	out.WriteByte(' ')
	out.WriteString(c.Name)
	for _, d := range c.ArrayDimensions {
		fmt.Fprintf(out, "[%d]", d)
	}
}

// Append the handles of the user defined types used by constants,
// dependencies first.
func (this *ConstantLinker) collectTypes(constants []ConstantDesc, seen map[int]bool, out *[]int) bool {
	for i := range constants {
		c := &constants[i]
		if !c.IsUDT {
			continue
		}
		h := int(c.TypeId)
		if seen[h] {
			continue
		}
		udt, ok := this.script_.GetConstantTypeDesc(h)
		if !ok {
			return false
		}
		seen[h] = true
		if !this.collectTypes(udt.Constants, seen, out) {
			return false
		}
		*out = append(*out, h)
	}
	return true
}

func (this *ConstantLinker) typeDeclaration(handle int) string {
	if code, ok := this.typeCode_[handle]; ok {
		return code
	}
	udt, _ := this.script_.GetConstantTypeDesc(handle)
	var out strings.Builder
	out.WriteString("struct " + udt.Name + "\n{\n")
	for i := range udt.Constants {
		out.WriteString("    ")
		writeConstant(&out, &udt.Constants[i])
		out.WriteString(";\n")
	}
	out.WriteString("};\n")
	this.typeCode_[handle] = out.String()
	return this.typeCode_[handle]
}

// / Declarations for the referenced constant buffers and every type they
// / depend on. Returns false if a handle or a type cannot be resolved.
func (this *ConstantLinker) GenerateBufferDeclarations(handles []int, out *strings.Builder) bool {
	var types []int
	seen := map[int]bool{}
	for _, h := range handles {
		cb, ok := this.script_.GetConstantBufferDesc(h)
		if !ok || !this.collectTypes(cb.Constants, seen, &types) {
			return false
		}
	}
	for _, h := range types {
		out.WriteString(this.typeDeclaration(h))
		out.WriteByte('\n')
	}

	for _, h := range handles {
		cb, _ := this.script_.GetConstantBufferDesc(h)
		if this.model_ >= SHADER_MODEL_4 {
			out.WriteString("cbuffer " + cb.Name)
			if cb.BufferRegister >= 0 {
				fmt.Fprintf(out, " : register(b%d)", cb.BufferRegister)
			}
			out.WriteString("\n{\n")
			for i := range cb.Constants {
				c := &cb.Constants[i]
				out.WriteString("    ")
				writeConstant(out, c)
				if c.Parameters.Has("packoffset") {
					out.WriteString(" : packoffset(" + strings.TrimSpace(c.Parameters.Get("packoffset", "")) + ")")
				}
				out.WriteString(";\n")
			}
			out.WriteString("};\n")
			continue
		}

		// Shader model 3 has no buffers: every constant is a global bound to
		// the float register holding its offset.
		base := max(cb.GlobalOffset, 0)
		for i := range cb.Constants {
			c := &cb.Constants[i]
			writeConstant(out, c)
			fmt.Fprintf(out, " : register(c%d);\n", base+c.Offset/16)
		}
	}
	return true
}

var kModel4TextureTypes = map[string]string{
	"sampler1d":   "Texture1D",
	"sampler2d":   "Texture2D",
	"sampler3d":   "Texture3D",
	"samplercube": "TextureCube",
}

// / Texture and sampler declarations for the given sampler blocks. Each
// / sampler gets an implicit texture named after it ("sDiffuse" uses
// / "sDiffuseTex"). Unknown sampler types are skipped under shader model 4.
func (this *ConstantLinker) GenerateSamplerDeclarations(handles []int, out *strings.Builder) {
	for _, h := range handles {
		sb, ok := this.script_.GetSamplerBlockDesc(h)
		if !ok {
			continue
		}
		for i := range sb.Samplers {
			s := &sb.Samplers[i]
			typeName := s.TypeName
			if this.model_ >= SHADER_MODEL_4 {
				typeName = "SamplerState"
				lower := strings.ToLower(s.TypeName)
				if tex, ok := kModel4TextureTypes[lower]; ok {
					out.WriteString(tex + " ")
				} else if lower == "sampler2dcmp" {
					out.WriteString("Texture2D ")
					typeName = "SamplerComparisonState"
				} else {
					continue
				}
			} else {
				out.WriteString("texture ")
			}

			out.WriteString(s.Name + "Tex")
			if s.RegisterIndex >= 0 {
				fmt.Fprintf(out, " : register(t%d)", s.RegisterIndex)
			}
			out.WriteString(";\n")
			out.WriteString(typeName + " " + s.Name)
			if s.RegisterIndex >= 0 {
				fmt.Fprintf(out, " : register(s%d)", s.RegisterIndex)
			}
			out.WriteString(";\n")
		}
	}
}
