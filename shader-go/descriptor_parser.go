package shader_go

import (
	"fmt"
	"strconv"
	"strings"
)

// / Parses the descriptor blocks found inside shader script replacement
// / blocks. A parser works directly on the preprocessor's buffer; the cursor
// / handed to each method delimits the block interior.
type DescriptorParser struct {
	tok    Tokenizer
	buf    *TextBuffer
	script *ShaderScript
}

func NewDescriptorParser(tok Tokenizer, buf *TextBuffer, script *ShaderScript) *DescriptorParser {
	ret := DescriptorParser{}
	ret.tok = tok
	ret.buf = buf
	ret.script = script
	return &ret
}

func (this *DescriptorParser) fail(t *Cursor, message string, err *string) bool {
	*err = fmt.Sprintf("line %d: %s", lineOf(this.buf, t.TokenStart), message)
	return false
}

func (this *DescriptorParser) isPunct(t *Cursor, c byte) bool {
	return t.IsPunct(this.buf, c)
}

// / Read a ": name(value), name(value)" list. The cursor must be on the
// / ':' token. On return the cursor holds the first token that does not
// / continue the list.
func (this *DescriptorParser) ParseParameterList(t *Cursor, params *ParameterList, err *string) bool {
	for t.Position <= t.SectionEnd {
		if !t.Next(this.tok, this.buf, true) || t.TokenClass != TOKEN_IDENTIFIER {
			return this.fail(t, "Expected parameter name.", err)
		}
		name := t.Token(this.buf)

		if !t.Next(this.tok, this.buf, true) {
			return this.fail(t, "Unexpected end of file.", err)
		}
		if !this.isPunct(t, '(') {
			return this.fail(t, "Expected opening '('.", err)
		}
		valueStart := t.Position
		nested := 1
		for {
			if !t.Next(this.tok, this.buf, true) {
				return this.fail(t, "Mismatched '('.", err)
			}
			if this.isPunct(t, '(') {
				nested++
			} else if this.isPunct(t, ')') {
				nested--
				if nested == 0 {
					break
				}
			}
		}
		params.Set(name, this.buf.Slice(valueStart, t.TokenStart-valueStart))

		if !t.Next(this.tok, this.buf, true) || !this.isPunct(t, ',') {
			break
		}
	}
	return true
}

// / Parse "name : params? (type name[dims]? : params? (= default)? ;)*"
// / and compute the resulting layout.
func (this *DescriptorParser) ParseTypeDescriptor(t *Cursor, desc *ConstantTypeDesc, namespace string, err *string) bool {
	desc.Length = 0
	desc.Alignment = 0
	desc.RegisterCount = 0
	desc.Constants = nil
	if desc.Parameters == nil {
		desc.Parameters = NewParameterList()
	}

	if !t.Next(this.tok, this.buf, true) || t.TokenClass != TOKEN_IDENTIFIER {
		return this.fail(t, "Expected type identifier.", err)
	}
	desc.Name = t.Token(this.buf)

	if !t.Next(this.tok, this.buf, true) {
		return this.fail(t, "Unexpected end of file.", err)
	}
	if this.isPunct(t, ':') {
		if !this.ParseParameterList(t, desc.Parameters, err) {
			return false
		}
	}
	desc.ParentNamespace = desc.Parameters.Get("namespace", namespace)

	for t.Position <= t.SectionEnd {
		c := ConstantDesc{
			TypeId:     CONSTANT_UNRESOLVED,
			Elements:   1,
			Parameters: NewParameterList(),
		}

		if t.TokenClass != TOKEN_IDENTIFIER && t.TokenClass != TOKEN_KEYWORD {
			return this.fail(t, "Expected type identifier.", err)
		}
		c.FullTypeName = t.Token(this.buf)
		if !this.classifyType(&c, desc.ParentNamespace) {
			return this.fail(t, fmt.Sprintf("Unrecognized type identifier '%s'.", c.FullTypeName), err)
		}

		if !t.Next(this.tok, this.buf, true) || t.TokenClass != TOKEN_IDENTIFIER {
			return this.fail(t, "Expected variable identifier.", err)
		}
		c.Name = t.Token(this.buf)

		if !t.Next(this.tok, this.buf, true) {
			return this.fail(t, "Unexpected end of file.", err)
		}

		// Possibly multi-dimensional (a[1][2][3]).
		for this.isPunct(t, '[') {
			c.IsArray = true
			if !t.Next(this.tok, this.buf, true) || t.TokenClass != TOKEN_VALUE {
				return this.fail(t, "Expected literal array size value.", err)
			}
			size, err1 := strconv.ParseInt(t.Token(this.buf), 0, 32)
			if err1 != nil || size <= 0 {
				return this.fail(t, "Expected literal array size value.", err)
			}
			c.Elements *= int(size)
			c.ArrayDimensions = append(c.ArrayDimensions, int(size))

			if !t.Next(this.tok, this.buf, true) || !this.isPunct(t, ']') {
				return this.fail(t, "Mismatched '[' token.", err)
			}
			if !t.Next(this.tok, this.buf, true) {
				return this.fail(t, "Unexpected end of file.", err)
			}
		}

		if this.isPunct(t, ':') {
			if !this.ParseParameterList(t, c.Parameters, err) {
				return false
			}
		}

		// Default values are accepted and ignored.
		if this.isPunct(t, '=') {
			for !this.isPunct(t, ';') {
				if !t.Next(this.tok, this.buf, true) {
					return this.fail(t, "Unexpected end of file.", err)
				}
			}
		}

		if !this.isPunct(t, ';') {
			return this.fail(t, "Expected ';'.", err)
		}
		desc.Constants = append(desc.Constants, c)

		if !t.Next(this.tok, this.buf, true) {
			break
		}
	}

	desc.ComputeLayout()
	return true
}

func (this *DescriptorParser) classifyType(c *ConstantDesc, namespace string) bool {
	if ClassifyIntrinsicType(c.FullTypeName, c) {
		return true
	}

	// User defined: inherit length and alignment from the registered type.
	c.IsUDT = true
	c.PrimitiveTypeName = c.FullTypeName
	c.Rows, c.Columns = 0, 0
	c.TypeId = CONSTANT_UNRESOLVED
	if this.script == nil {
		return false
	}
	handle := this.script.FindConstantType(namespace, c.FullTypeName)
	udt, ok := this.script.GetConstantTypeDesc(handle)
	if !ok {
		return false
	}
	c.TypeId = ConstantType(handle)
	c.Alignment = udt.Alignment
	c.ElementLength = udt.Length
	return true
}

// / A constant buffer is a type descriptor plus the register,
// / globaloffset and shaderconstraints parameters.
func (this *DescriptorParser) ParseCBufferDescriptor(t *Cursor, desc *ConstantBufferDesc, namespace string, err *string) bool {
	if !this.ParseTypeDescriptor(t, &desc.ConstantTypeDesc, namespace, err) {
		return false
	}

	desc.BufferRegister = desc.Parameters.GetInt("register", -1)
	desc.GlobalOffset = desc.Parameters.GetInt("globaloffset", -1)
	desc.BindVS = false
	desc.BindPS = false
	for _, stage := range strings.Split(desc.Parameters.Get("shaderconstraints", "vs|ps"), "|") {
		switch strings.ToLower(strings.TrimSpace(stage)) {
		case "vs":
			desc.BindVS = true
		case "ps":
			desc.BindPS = true
		}
	}
	return true
}

// / Parse "name? : params? (type name : params? ;)*". The block is unnamed
// / when its first token follows a newline or a parameter list separator.
func (this *DescriptorParser) ParseSamplerBlock(t *Cursor, desc *SamplerBlockDesc, namespace string, err *string) bool {
	desc.Samplers = nil
	if desc.Parameters == nil {
		desc.Parameters = NewParameterList()
	}

	endOfName := this.buf.IndexAny("\n:", t.Position)
	if endOfName < 0 || endOfName > t.SectionEnd+1 {
		endOfName = t.SectionEnd + 1
	}

	if !t.Next(this.tok, this.buf, true) {
		return this.fail(t, "Unexpected end of file.", err)
	}

	if t.TokenStart < endOfName {
		if t.TokenClass != TOKEN_IDENTIFIER {
			return this.fail(t, "Expected sampler block identifier.", err)
		}
		desc.Name = t.Token(this.buf)
		if !t.Next(this.tok, this.buf, true) {
			return this.fail(t, "Unexpected end of file.", err)
		}
	} else {
		desc.Name = kDefaultSamplerBlock
	}

	if this.isPunct(t, ':') {
		if !this.ParseParameterList(t, desc.Parameters, err) {
			return false
		}
	}
	desc.ParentNamespace = desc.Parameters.Get("namespace", namespace)

	for t.Position <= t.SectionEnd {
		s := SamplerDesc{
			RegisterIndex:   -1,
			ParentNamespace: desc.ParentNamespace,
			Parameters:      NewParameterList(),
		}

		if t.TokenClass != TOKEN_IDENTIFIER {
			return this.fail(t, "Expected type identifier.", err)
		}
		s.TypeName = t.Token(this.buf)

		if !t.Next(this.tok, this.buf, true) || t.TokenClass != TOKEN_IDENTIFIER {
			return this.fail(t, "Expected variable identifier.", err)
		}
		s.Name = t.Token(this.buf)

		if !t.Next(this.tok, this.buf, true) {
			return this.fail(t, "Unexpected end of file.", err)
		}
		if this.isPunct(t, ':') {
			if !this.ParseParameterList(t, s.Parameters, err) {
				return false
			}
		}
		s.RegisterIndex = s.Parameters.GetInt("register", -1)

		if !this.isPunct(t, ';') {
			return this.fail(t, "Expected ';'.", err)
		}
		desc.Samplers = append(desc.Samplers, s)

		if !t.Next(this.tok, this.buf, true) {
			break
		}
	}
	return true
}

// / Skip whitespace tokens, appending them to keep so that the rewritten
// / declaration spans the same number of lines.
func (this *DescriptorParser) nextKeepWS(t *Cursor, keep *strings.Builder) bool {
	for t.Next(this.tok, this.buf, false) {
		if t.TokenClass != TOKEN_WHITESPACE {
			return true
		}
		keep.WriteString(t.Token(this.buf))
	}
	return false
}

var kShaderCallModifiers = []string{"in", "out", "inout", "uniform", "script"}

func isShaderCallModifier(s string) bool {
	for _, m := range kShaderCallModifiers {
		if s == m {
			return true
		}
	}
	return false
}

// / Parse "__shadercall ret name([modifier] type [name], ...)" starting at
// / the __shadercall token, and rewrite the declaration in place into its
// / script facing form: the return type becomes String and every non
// / script parameter becomes "const String&". The cursor ends just past the
// / closing parenthesis.
func (this *DescriptorParser) ParseShaderCallDeclaration(t *Cursor, desc *ShaderCallFunctionDesc, namespace string, err *string) bool {
	var newDecl, shaderDecl, callParams strings.Builder
	newDecl.WriteString("String")
	*desc = ShaderCallFunctionDesc{}

	declBegin := t.TokenStart
	firstParam := true

	if !this.nextKeepWS(t, &newDecl) {
		return this.fail(t, "Unexpected end of file.", err)
	}
	returnType := t.Token(this.buf)
	shaderDecl.WriteString(returnType)
	shaderDecl.WriteString(" ")

	if !this.nextKeepWS(t, &newDecl) || t.TokenClass != TOKEN_IDENTIFIER {
		return this.fail(t, "Expected function name.", err)
	}
	name := t.Token(this.buf)
	newDecl.WriteString(name)
	shaderDecl.WriteString(name)

	if !this.nextKeepWS(t, &newDecl) {
		return this.fail(t, "Unexpected end of file.", err)
	}
	if !this.isPunct(t, '(') {
		return this.fail(t, "Expected opening '('.", err)
	}
	newDecl.WriteString("(")
	shaderDecl.WriteString("(")
	desc.RequiresReturn = returnType != "void"

	for done := false; !done; {
		if !this.nextKeepWS(t, &newDecl) {
			return this.fail(t, "Unexpected end of file.", err)
		}
		if this.isPunct(t, ')') {
			newDecl.WriteString(")")
			break
		}
		if this.isPunct(t, ',') {
			return this.fail(t, "Expected parameter declaration.", err)
		}

		param := ShaderCallParameterDesc{}
		modifierBegin := t.TokenStart
		if word := t.Token(this.buf); isShaderCallModifier(word) {
			param.Modifier = word
			param.ScriptParameter = word == "script"
			if !this.nextKeepWS(t, &newDecl) {
				return this.fail(t, "Unexpected end of file.", err)
			}
			if this.isPunct(t, ')') || this.isPunct(t, ',') {
				return this.fail(t, "Expected parameter type.", err)
			}
		}

		param.TypeName = t.Token(this.buf)
		if param.ScriptParameter {
			newDecl.WriteString(param.TypeName)
		} else {
			newDecl.WriteString("const String&")
		}

		// Optional name, then ',' or ')'.
		if !this.nextKeepWS(t, &newDecl) {
			return this.fail(t, "Unexpected end of file.", err)
		}
		if !this.isPunct(t, ')') && !this.isPunct(t, ',') {
			param.Name = t.Token(this.buf)
			newDecl.WriteString(param.Name)
			if !this.nextKeepWS(t, &newDecl) {
				return this.fail(t, "Unexpected end of file.", err)
			}
			if !this.isPunct(t, ')') && !this.isPunct(t, ',') {
				return this.fail(t, "Expected ','.", err)
			}
		}
		paramEnd := t.TokenStart
		if this.isPunct(t, ')') {
			newDecl.WriteString(")")
			done = true
		} else {
			newDecl.WriteString(",")
		}
		desc.Parameters = append(desc.Parameters, param)

		if !param.ScriptParameter {
			if !firstParam {
				shaderDecl.WriteString(",")
			}
			shaderDecl.WriteString(this.buf.Slice(modifierBegin, paramEnd-modifierBegin))
			if firstParam {
				callParams.WriteString(`"("+`)
			} else {
				callParams.WriteString(`+",("+`)
			}
			callParams.WriteString(param.Name)
			callParams.WriteString(`+")"`)
			firstParam = false
		}
	}
	shaderDecl.WriteString(")")

	scriptDecl := newDecl.String()
	if delta := this.buf.ReplaceSection(declBegin, t.Position-declBegin, scriptDecl); delta != 0 {
		t.Reindex(delta)
		t.Position = declBegin + len(scriptDecl)
	}

	desc.Name = name
	desc.ParentNamespace = namespace
	desc.ReturnType = returnType
	desc.Declaration = shaderDecl.String()
	desc.CallingParams = callParams.String()
	desc.ScriptDeclaration = scriptDecl
	return true
}

// / 1-based line number of pos.
func lineOf(buf *TextBuffer, pos int) int {
	pos = min(max(pos, 0), buf.Len())
	line := 1
	for _, c := range buf.Data[:pos] {
		if c == '\n' {
			line++
		}
	}
	return line
}
