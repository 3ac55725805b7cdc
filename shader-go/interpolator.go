package shader_go

import (
	"fmt"
	"strings"
)

// Replacement block types, selected by the word following "<?".
type blockType int8

const (
	BLOCK_CODE blockType = iota
	BLOCK_IN
	BLOCK_OUT
	BLOCK_CBUFFER_REFS
	BLOCK_CBUFFER
	BLOCK_CTYPE
	BLOCK_COMMON
	BLOCK_SAMPLER_REFS
	BLOCK_SAMPLERS
	BLOCK_GLOBAL
)

var kBlockTypeNames = map[string]blockType{
	"in":          BLOCK_IN,
	"out":         BLOCK_OUT,
	"cbufferrefs": BLOCK_CBUFFER_REFS,
	"cbuffer":     BLOCK_CBUFFER,
	"ctype":       BLOCK_CTYPE,
	"common":      BLOCK_COMMON,
	"samplerrefs": BLOCK_SAMPLER_REFS,
	"samplers":    BLOCK_SAMPLERS,
	"global":      BLOCK_GLOBAL,
}

// / Append c to out, escaped for use inside a script string literal. A
// / line feed closes the literal and reopens it on the next line so the
// / generated code keeps the line numbering of the source; carriage returns
// / are dropped.
func escapeScriptChar(out *strings.Builder, c byte) {
	switch c {
	case 0:
		out.WriteString(`\0`)
	case 8:
		out.WriteString(`\x8`)
	case '\t':
		out.WriteString(`\t`)
	case '\n':
		out.WriteString("\\n\"\n\"")
	case '\r':
	case 26:
		out.WriteString(`\x1A`)
	case '"':
		out.WriteString(`\"`)
	case '\'':
		out.WriteString(`\'`)
	case '\\':
		out.WriteString(`\\`)
	case '`':
		out.WriteString("\\`")
	default:
		out.WriteByte(c)
	}
}

func escapeScriptText(out *strings.Builder, text string) {
	for i := 0; i < len(text); i++ {
		escapeScriptChar(out, text[i])
	}
}

// / Rewrite the "$name" and "$(expression)" references inside the cursor's
// / section.
// /
// / In the default mode the section is the text of a string literal and
// / each reference becomes `" + (name) + "`, or `(" + (name) + ")` when
// / addParentheses is set. In shader parameter mode the section is a raw
// / argument of a shader call: plain text is turned into an escaped string
// / literal and references are passed through as "(name)".
// /
// / The buffer is rewritten only when something changed. On return the
// / cursor is positioned just past its (possibly grown) section.
func InterpolateScriptString(buf *TextBuffer, t *Cursor, shaderParameter, addParentheses bool) {
	modified := false
	processing := !shaderParameter
	var out, ws strings.Builder
	end := t.SectionEnd

	prefix, suffix := `" + (`, `) + "`
	if addParentheses {
		prefix, suffix = `(" + (`, `) + ")`
	}

	for i := t.Position; i <= end; i++ {
		c := buf.At(i)
		further := true
		if !processing && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
			// Buffered, only written once we know what follows.
			ws.WriteByte(c)
			further = false
		} else if c == '$' {
			expr, consumed := "", -1
			if i+1 <= end && buf.At(i+1) == '(' {
				depth, j := 1, i+2
				for ; j <= end; j++ {
					if buf.At(j) == '(' {
						depth++
					} else if buf.At(j) == ')' {
						depth--
						if depth == 0 {
							break
						}
					}
				}
				// Without a closing ')' the '$' is ordinary text.
				if j <= end {
					expr, consumed = buf.Slice(i+2, j-(i+2)), j-i
				}
			} else {
				j := i + 1
				for j <= end && isIdentChar(buf.At(j)) {
					j++
				}
				if j > i+1 {
					expr, consumed = buf.Slice(i+1, j-(i+1)), j-1-i
				}
			}

			if consumed >= 0 {
				if shaderParameter && !processing {
					out.WriteString(ws.String())
					ws.Reset()
					out.WriteString("(" + expr + ")")
				} else {
					out.WriteString(prefix + expr + suffix)
				}
				i += consumed
				modified = true
				further = false
			}
		}

		if !further {
			continue
		}
		if !shaderParameter {
			out.WriteByte(c)
			continue
		}
		if !processing {
			// "$foo.bar": append the text to the reference already written.
			if modified {
				out.WriteString(" + ")
			}
			out.WriteByte('"')
			out.WriteString(ws.String())
			ws.Reset()
			processing = true
			modified = true
		}
		escapeScriptChar(&out, c)
	}

	if shaderParameter {
		out.WriteString(ws.String())
		if processing {
			out.WriteByte('"')
			modified = true
		}
	}

	if modified {
		text := out.String()
		delta := buf.ReplaceSection(t.SectionBegin, end-t.SectionBegin+1, text)
		t.Reindex(delta)
	}
	t.Position = t.SectionEnd + 1
}

// / Interpolate a free-standing shader call argument.
func InterpolateShaderParameter(param string) string {
	buf := NewTextBuffer(param)
	t := CursorOver(buf)
	InterpolateScriptString(buf, &t, true, true)
	return buf.String()
}

// / Process a "<?[type] ... ?>" replacement block. The cursor is on the '<'
// / token; on return it is positioned after the rewritten block.
func (this *Preprocessor) parseShaderBlock(buf *TextBuffer, t *Cursor, namespace, section string) bool {
	blockStart := t.TokenStart
	typ := BLOCK_CODE

	// Skip '?' and look for an optional type word.
	t.Position = t.TokenStart + 2
	if t.Next(this.tokenizer_, buf, false) && t.TokenClass != TOKEN_WHITESPACE {
		if bt, ok := kBlockTypeNames[strings.ToLower(t.Token(buf))]; ok {
			typ = bt
		} else {
			t.Position = t.TokenStart
		}
	} else {
		// Whitespace belongs to the interior so that line numbering holds.
		t.Position = t.TokenStart
	}

	interiorStart := t.Position
	interiorEnd := buf.Index("?>", interiorStart)
	if interiorEnd < 0 {
		this.log_.Write(SEVERITY_ERROR, "%s(%d): Expected closing tag '?>' for shader code section.", section, lineOf(buf, blockStart))
		return false
	}
	interiorEnd--

	var newInterior string
	switch typ {
	case BLOCK_CBUFFER, BLOCK_CTYPE, BLOCK_SAMPLERS:
		// Descriptor blocks see the macros defined so far.
		tExpand := NewCursor(interiorStart, interiorEnd)
		this.macros_.ExpandStatement(this.tokenizer_, buf, &tExpand)
		this.reportCycles(section)
		t.Reindex(tExpand.SectionEnd - interiorEnd)
		interiorEnd = tExpand.SectionEnd

		var err string
		parser := NewDescriptorParser(this.tokenizer_, buf, this.script_)
		tBlock := NewCursor(interiorStart, interiorEnd)
		switch typ {
		case BLOCK_CBUFFER:
			desc := ConstantBufferDesc{}
			if !parser.ParseCBufferDescriptor(&tBlock, &desc, namespace, &err) {
				this.log_.Write(SEVERITY_ERROR, "%s: %s", section, err)
				return false
			}
			handle := this.script_.AddConstantBufferDesc(desc)
			if handle < 0 {
				this.log_.Write(SEVERITY_ERROR, "%s(%d): Duplicate constant buffer declaration '%s'.", section, lineOf(buf, blockStart), desc.Name)
				return false
			}
			newInterior = fmt.Sprintf("int __shcb_%s(){return %d;}", desc.Name, handle)

		case BLOCK_CTYPE:
			desc := ConstantTypeDesc{}
			if !parser.ParseTypeDescriptor(&tBlock, &desc, namespace, &err) {
				this.log_.Write(SEVERITY_ERROR, "%s: %s", section, err)
				return false
			}
			if this.script_.AddConstantTypeDesc(desc) < 0 {
				this.log_.Write(SEVERITY_ERROR, "%s(%d): Duplicate constant type declaration '%s'.", section, lineOf(buf, blockStart), desc.Name)
				return false
			}

		case BLOCK_SAMPLERS:
			desc := SamplerBlockDesc{}
			if !parser.ParseSamplerBlock(&tBlock, &desc, namespace, &err) {
				this.log_.Write(SEVERITY_ERROR, "%s: %s", section, err)
				return false
			}
			handle := this.script_.AddSamplerBlockDesc(desc, this.log_)
			if handle < 0 {
				return false
			}
			newInterior = fmt.Sprintf("int __shsmp_%s(){return %d;}\n", desc.Name, handle)
		}

	default:
		code, ok := this.rewriteBlockCode(buf, interiorStart, interiorEnd, typ, namespace, section)
		if !ok {
			return false
		}
		if typ == BLOCK_COMMON {
			this.script_.AddCommonCode(namespace, buf.Slice(interiorStart, interiorEnd-interiorStart+1))
		}
		newInterior = wrapBlockCode(typ, code)
	}

	// Just past "?>".
	t.Position = interiorEnd + 3
	if delta := buf.ReplaceLines(blockStart, t.Position-blockStart, newInterior); delta != 0 {
		t.Reindex(delta)
		t.Position += delta
	}
	return true
}

func wrapBlockCode(typ blockType, code string) string {
	switch typ {
	case BLOCK_IN:
		return `__shi.append("` + code + `");`
	case BLOCK_OUT:
		return `__sho.append("` + code + `");`
	case BLOCK_CBUFFER_REFS:
		return `__cbr.append("` + code + `");`
	case BLOCK_COMMON:
		return `String __shcmn(){return "` + code + `";}`
	case BLOCK_SAMPLER_REFS:
		return `__sbr.append("` + code + `");`
	case BLOCK_GLOBAL:
		return `__shg.append("` + code + `");`
	}
	return `__sh_code("` + code + `");`
}

// Escape the block interior into the body of a script string literal. In
// plain code blocks, calls to declared shader call functions are turned
// into script calls spliced between two halves of the literal.
func (this *Preprocessor) rewriteBlockCode(buf *TextBuffer, start, end int, typ blockType, namespace, section string) (string, bool) {
	var interior strings.Builder
	tc := NewCursor(start, end)
	for tc.Next(this.tokenizer_, buf, false) {
		text := tc.Token(buf)
		if typ != BLOCK_CODE || tc.TokenClass != TOKEN_IDENTIFIER ||
			len(this.script_.FindShaderCallFunc(namespace, text)) == 0 {
			escapeScriptText(&interior, text)
			continue
		}

		callStart := tc.TokenStart
		var call strings.Builder
		call.WriteString(`"+` + text)

		ok := tc.Next(this.tokenizer_, buf, false)
		for ok && tc.TokenClass == TOKEN_WHITESPACE {
			call.WriteString(tc.Token(buf))
			ok = tc.Next(this.tokenizer_, buf, false)
		}
		if !ok || !tc.IsPunct(buf, '(') {
			// Only a reference to the name; keep it as text.
			escapeScriptText(&interior, buf.Slice(callStart, tc.Position-callStart))
			continue
		}
		call.WriteString("(")

		depth := 1
		var param strings.Builder
		for depth > 0 && tc.Next(this.tokenizer_, buf, false) {
			if tc.TokenClass == TOKEN_WHITESPACE {
				continue
			}
			c := buf.At(tc.TokenStart)
			if depth == 1 && tc.TokenLength == 1 && (c == ',' || c == ')') {
				call.WriteString(InterpolateShaderParameter(param.String()))
				call.WriteByte(c)
				param.Reset()
				if c == ')' {
					depth--
				}
				continue
			}
			if tc.IsPunct(buf, '(') {
				depth++
			} else if tc.IsPunct(buf, ')') {
				depth--
			}
			param.WriteString(tc.Token(buf))
		}
		if depth != 0 {
			this.log_.Write(SEVERITY_ERROR, "%s(%d): Mismatched '(' in call to shader function '%s'.", section, lineOf(buf, callStart), text)
			return "", false
		}
		call.WriteString(`+"`)
		interior.WriteString(call.String())
	}

	// "$name" references inside the literal.
	code := NewTextBuffer(interior.String())
	tCode := CursorOver(code)
	InterpolateScriptString(code, &tCode, false, false)
	return code.String(), true
}
