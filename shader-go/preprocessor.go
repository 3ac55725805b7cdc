package shader_go

import (
	"fmt"
	"strings"

	"github.com/edwingeng/deque"
)

const kThisAccessorSection = "__ThisAccessor"
const kShaderGlobalsSection = "__ShaderScriptGlobals"

const kShaderGlobalsCode = "String __shx, __shi, __sho, __shg, __cbr, __sbr;SystemExports @ System;\n" +
	"String __shsyscmnvs(){ return System.SystemCommon(0);}\n" +
	"String __shsyscmnps(){ return System.SystemCommon(1);}\n"

// / Rewrites script source before it is handed to the script engine. One
// / Process call is one session: the macro table and the include stack live
// / for that call only, while everything collected from replacement blocks
// / goes to the script.
type Preprocessor struct {
	tokenizer_ Tokenizer
	evaluator_ ExpressionEvaluator
	disk_      DiskInterface
	engine_    ScriptEngine
	log_       Logger
	config_    *Config
	dump_      *DebugDump

	script_ *ShaderScript
	macros_ *MacroTable

	/// Logical names of the files being loaded, outermost first.
	includes_ deque.Deque
	active_   map[string]bool
}

func NewPreprocessor(tok Tokenizer, disk DiskInterface, engine ScriptEngine, log Logger, config *Config) *Preprocessor {
	ret := Preprocessor{}
	ret.tokenizer_ = tok
	ret.evaluator_ = EvaluateCondition
	ret.disk_ = disk
	ret.engine_ = engine
	ret.log_ = log
	ret.config_ = config
	ret.dump_ = NewDebugDump(disk, config.DebugDump)
	ret.macros_ = NewMacroTable()
	ret.includes_ = deque.NewDeque()
	ret.active_ = map[string]bool{}
	return &ret
}

// / Replace the #if expression evaluator.
func (this *Preprocessor) SetEvaluator(e ExpressionEvaluator) { this.evaluator_ = e }

// / Macros as they stood at the end of the last session.
func (this *Preprocessor) Macros() *MacroTable { return this.macros_ }

func (this *Preprocessor) errorAt(section string, buf *TextBuffer, pos int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	this.log_.Write(SEVERITY_ERROR, "%s(%d): %s", section, lineOf(buf, pos), msg)
}

// / Preprocess streamName and everything it includes into script. The
// / defines seed the macro table.
func (this *Preprocessor) Process(script *ShaderScript, streamName string, defines map[string]string) LoadStatus {
	defer METRIC_RECORD("preprocess")()

	this.script_ = script
	this.macros_ = NewMacroTableFrom(defines)
	this.includes_ = deque.NewDeque()
	this.active_ = map[string]bool{}

	if script.IsShaderScript() {
		if t := script.ThisType(); t != "" {
			code := t + "@ this; void __GlobalSetThis(" + t + "@ o){ @this = o; }"
			if !this.addSection(kThisAccessorSection, code) {
				return LOAD_ERROR
			}
		}
		if !this.addSection(kShaderGlobalsSection, kShaderGlobalsCode) {
			return LOAD_ERROR
		}
		sysdefs := this.config_.SystemDefinitions
		if sysdefs != "" && sysdefs != streamName {
			if this.loadScriptSection(sysdefs) != LOAD_SUCCESS {
				return LOAD_ERROR
			}
		}
	}
	return this.loadScriptSection(streamName)
}

func (this *Preprocessor) addSection(name, code string) bool {
	var err string
	if !this.engine_.AddScriptSection(this.script_.Name(), name, code, &err) {
		this.log_.Write(SEVERITY_ERROR, "An error occured while attempting to add code to script '%s'. %s", this.script_.Name(), err)
		return false
	}
	this.script_.AddSection(name, code)
	return true
}

// / Read one file, record it as a source of the script and preprocess it
// / into its own section.
func (this *Preprocessor) loadScriptSection(name string) LoadStatus {
	var contents, err string
	switch this.disk_.ReadFile(name, &contents, &err) {
	case NotFound:
		this.log_.Write(SEVERITY_ERROR, "File not found while attempting to open script or script dependency '%s'.", name)
		return LOAD_NOT_FOUND
	case OtherError:
		this.log_.Write(SEVERITY_ERROR, "Unable to read contents of the script or script dependency '%s'.", name)
		return LOAD_ERROR
	}
	if len(contents) == 0 {
		this.log_.Write(SEVERITY_ERROR, "Zero length script encountered when loading file '%s'.", name)
		return LOAD_ERROR
	}
	this.script_.AddSourceFile(name, []byte(contents))

	this.includes_.PushBack(name)
	this.active_[name] = true
	ok := this.processScriptSection(contents, name)
	this.includes_.PopBack()
	delete(this.active_, name)

	if !ok {
		this.log_.Write(SEVERITY_ERROR, "An error occured while attempting to add code to script resource '%s'.", name)
		return LOAD_ERROR
	}
	return LOAD_SUCCESS
}

// / Name of the file currently being processed, or "".
func (this *Preprocessor) currentFile() string {
	if this.includes_.Empty() {
		return ""
	}
	return this.includes_.Back().(string)
}

// Brace bookkeeping for the namespace and the __shadercall bodies.
type scopeState struct {
	depth        int
	namespace    string
	pendingClass string
	classDepth   int
	pendingCall  *ShaderCallFunctionDesc
	callDepth    int
}

func (this *Preprocessor) processScriptSection(code, section string) bool {
	buf := NewTextBuffer(code)
	t := CursorOver(buf)
	shader := this.script_.IsShaderScript()
	var conds []bool
	scope := scopeState{classDepth: -1, callDepth: -1}

	for t.Next(this.tokenizer_, buf, false) {
		switch t.TokenClass {
		case TOKEN_COMMENT, TOKEN_WHITESPACE:
			continue

		case TOKEN_UNKNOWN:
			if buf.At(t.TokenStart) == '#' {
				if !this.parseDirective(buf, &t, &conds, section) {
					return false
				}
			}

		case TOKEN_VALUE:
			end := t.TokenStart + t.TokenLength - 1
			if shader && buf.At(t.TokenStart) == '"' && t.TokenLength >= 2 && buf.At(end) == '"' &&
				!strings.HasPrefix(t.Token(buf), `"""`) {
				tStr := NewCursor(t.TokenStart+1, end-1)
				InterpolateScriptString(buf, &tStr, false, false)
				t.Reindex(tStr.SectionEnd - (end - 1))
				t.Position = tStr.SectionEnd + 2
			}

		case TOKEN_KEYWORD:
			if !this.processKeyword(buf, &t, &scope, shader, section) {
				return false
			}

		case TOKEN_IDENTIFIER:
			name := t.Token(buf)
			if shader && name == "__shadercall" {
				if !this.processShaderCall(buf, &t, &scope, section) {
					return false
				}
				continue
			}
			if !this.macros_.IsDefined(name) {
				continue
			}
			tokenEnd := t.TokenStart + t.TokenLength - 1
			tExpand := NewCursor(t.TokenStart, tokenEnd)
			this.macros_.ExpandStatement(this.tokenizer_, buf, &tExpand)
			this.reportCycles(section)
			t.Reindex(tExpand.SectionEnd - tokenEnd)
			t.Position = tExpand.SectionEnd + 1
		}
	}

	if len(conds) > 0 {
		this.log_.Write(SEVERITY_ERROR, "%s(%d): Unexpected end of file. Missing #endif directive.", section, buf.LineCount()+1)
		return false
	}

	text := buf.String()
	this.dump_.Script(BaseNameNoExt(section), text)
	return this.addSection(section, text)
}

func (this *Preprocessor) processKeyword(buf *TextBuffer, t *Cursor, scope *scopeState, shader bool, section string) bool {
	switch {
	case shader && t.IsPunct(buf, '<') && buf.At(t.TokenStart+1) == '?':
		return this.parseShaderBlock(buf, t, scope.namespace, section)

	case t.Token(buf) == "class":
		save := t.Position
		if t.Next(this.tokenizer_, buf, true) && t.TokenClass == TOKEN_IDENTIFIER {
			scope.pendingClass = t.Token(buf)
		}
		t.Position = save

	case t.IsPunct(buf, ';'):
		// Forward declarations.
		scope.pendingClass = ""
		scope.pendingCall = nil

	case t.IsPunct(buf, '{'):
		scope.depth++
		if scope.pendingClass != "" {
			scope.namespace = scope.pendingClass
			scope.classDepth = scope.depth
			scope.pendingClass = ""
		}
		if scope.pendingCall != nil {
			header := shaderCallHeader(scope.pendingCall)
			scope.callDepth = scope.depth
			scope.pendingCall = nil
			if delta := buf.ReplaceSection(t.TokenStart, 1, header); delta != 0 {
				t.Reindex(delta)
				t.Position = t.TokenStart + len(header)
			}
		}

	case t.IsPunct(buf, '}'):
		if scope.depth == scope.callDepth {
			scope.callDepth = -1
			footer := "__sh_pop_code_output();return __sh_generate_shader_call( __shDecl, __shFunc, __shParams, __shxLocal );}"
			if delta := buf.ReplaceSection(t.TokenStart, 1, footer); delta != 0 {
				t.Reindex(delta)
				t.Position = t.TokenStart + len(footer)
			}
		}
		if scope.depth == scope.classDepth {
			scope.classDepth = -1
			scope.namespace = ""
		}
		if scope.depth > 0 {
			scope.depth--
		}
	}
	return true
}

func (this *Preprocessor) processShaderCall(buf *TextBuffer, t *Cursor, scope *scopeState, section string) bool {
	var err string
	desc := ShaderCallFunctionDesc{}
	start := t.TokenStart
	parser := NewDescriptorParser(this.tokenizer_, buf, this.script_)
	if !parser.ParseShaderCallDeclaration(t, &desc, scope.namespace, &err) {
		this.log_.Write(SEVERITY_ERROR, "%s: %s", section, err)
		return false
	}
	if this.script_.AddShaderCallFuncDesc(desc) < 0 {
		this.errorAt(section, buf, start, "Duplicate declaration of shader function '%s'.", desc.Name)
		return false
	}
	scope.pendingCall = &desc
	return true
}

// The opening brace of a __shadercall body. Declarations spanning several
// lines are flattened so the header stays on one line.
func shaderCallHeader(desc *ShaderCallFunctionDesc) string {
	var decl strings.Builder
	escapeScriptText(&decl, strings.NewReplacer("\r", "", "\n", " ").Replace(desc.Declaration))
	params := "__shParams;"
	if desc.CallingParams != "" {
		params = "__shParams=" + desc.CallingParams + ";"
	}
	return `{String __shxLocal, __shDecl="` + decl.String() + `",__shFunc="` + desc.Name + `",` +
		params + "__sh_push_code_output( __shxLocal );"
}

func (this *Preprocessor) reportCycles(section string) {
	for _, name := range this.macros_.TakeCycles() {
		this.log_.Write(SEVERITY_WARNING, "Recursive macro '%s' left unexpanded in '%s'.", name, section)
	}
}

var kDirectives = []string{"if", "ifdef", "ifndef", "elif", "elseif", "else", "endif", "define", "undef", "include"}

// / Handle the directive whose '#' is the cursor's current token. The
// / directive line is blanked; excluded code that follows is blanked too.
func (this *Preprocessor) parseDirective(buf *TextBuffer, t *Cursor, conds *[]bool, section string) bool {
	directiveStart := t.TokenStart
	eol := buf.IndexAny("\r\n", directiveStart)
	if eol < 0 || eol > t.SectionEnd {
		eol = t.SectionEnd + 1
	}

	if !t.Next(this.tokenizer_, buf, true) || t.TokenStart >= eol ||
		(t.TokenClass != TOKEN_IDENTIFIER && t.TokenClass != TOKEN_KEYWORD) {
		this.errorAt(section, buf, directiveStart, "Expected pre-processor directive.")
		return false
	}
	directive := t.Token(buf)
	statementStart := t.Position
	statement := buf.Slice(statementStart, eol-statementStart)

	unexpected := func() bool {
		this.errorAt(section, buf, directiveStart, "Unexpected #%s encountered. No matching #if, #ifdef or #ifndef directive.", directive)
		return false
	}
	exclude := false

	switch directive {
	case "if":
		result, ok := this.evaluateCondition(statement, buf, directiveStart, section)
		if !ok {
			return false
		}
		*conds = append(*conds, result)
		exclude = !result

	case "elif", "elseif":
		if len(*conds) == 0 {
			return unexpected()
		}
		top := &(*conds)[len(*conds)-1]
		if *top {
			exclude = true
		} else {
			result, ok := this.evaluateCondition(statement, buf, directiveStart, section)
			if !ok {
				return false
			}
			*top = result
			exclude = !result
		}

	case "else":
		if len(*conds) == 0 {
			return unexpected()
		}
		top := &(*conds)[len(*conds)-1]
		if *top {
			exclude = true
		} else {
			*top = true
		}

	case "endif":
		if len(*conds) == 0 {
			return unexpected()
		}
		*conds = (*conds)[:len(*conds)-1]

	case "ifdef", "ifndef":
		name, ok := this.directiveIdentifier(buf, t, eol)
		if !ok {
			this.errorAt(section, buf, directiveStart, "Expected identifier after #%s.", directive)
			return false
		}
		notDefined := !this.macros_.IsDefined(name)
		result := notDefined == (directive == "ifndef")
		*conds = append(*conds, result)
		exclude = !result

	case "define":
		name, ok := this.directiveIdentifier(buf, t, eol)
		if !ok {
			this.errorAt(section, buf, directiveStart, "Expected identifier after #define.")
			return false
		}
		value := strings.TrimSpace(buf.Slice(t.Position, eol-t.Position))
		if !this.macros_.Define(name, value) {
			// TODO: decide whether redefinition should replace the first binding once existing scripts are audited.
			this.log_.Write(SEVERITY_WARNING, "%s(%d): Macro '%s' is already defined. The first definition is kept.", section, lineOf(buf, directiveStart), name)
		}

	case "undef":
		name, ok := this.directiveIdentifier(buf, t, eol)
		if !ok {
			this.errorAt(section, buf, directiveStart, "Expected identifier after #undef.")
			return false
		}
		this.macros_.Undefine(name)

	case "include":
		if !this.includeFile(buf, t, eol, directiveStart, section) {
			return false
		}

	default:
		this.log_.Write(SEVERITY_WARNING, "%s(%d): Unknown pre-processor directive '#%s' ignored.%s", section, lineOf(buf, directiveStart), directive,
			suggestion(SpellcheckStringV(directive, kDirectives)))
	}

	buf.Overwrite(directiveStart, eol-directiveStart)
	t.Position = eol
	if exclude {
		this.excludeCode(buf, t)
	}
	return true
}

func suggestion(s string) string {
	if s == "" {
		return ""
	}
	return " Did you mean '#" + s + "'?"
}

// The identifier following a directive, on the same line.
func (this *Preprocessor) directiveIdentifier(buf *TextBuffer, t *Cursor, eol int) (string, bool) {
	if !t.Next(this.tokenizer_, buf, true) || t.TokenStart >= eol || !IsValidMacro(t.Token(buf)) {
		return "", false
	}
	return t.Token(buf), true
}

func (this *Preprocessor) includeFile(buf *TextBuffer, t *Cursor, eol, directiveStart int, section string) bool {
	if !t.Next(this.tokenizer_, buf, true) || t.TokenStart >= eol || t.TokenClass != TOKEN_VALUE ||
		t.TokenLength <= 2 || buf.At(t.TokenStart) != '"' {
		this.errorAt(section, buf, directiveStart, "Expected include file name.")
		return false
	}
	path := strings.Trim(t.Token(buf), `"`)
	if !strings.Contains(path, "://") {
		path = spliceSlash(DirectoryName(this.currentFile()), path)
	}
	if this.active_[path] {
		this.errorAt(section, buf, directiveStart, "Recursive inclusion of '%s'.", path)
		return false
	}

	prev, hadParent := this.macros_.Lookup(kParentScriptMacro)
	this.macros_.Set(kParentScriptMacro, `"`+section+`"`)
	status := this.loadScriptSection(path)
	if hadParent {
		this.macros_.Set(kParentScriptMacro, prev)
	} else {
		this.macros_.Undefine(kParentScriptMacro)
	}

	if status != LOAD_SUCCESS {
		this.errorAt(section, buf, directiveStart, "Unable to include '%s'.", path)
		return false
	}
	return true
}

// / Evaluate an #if / #elif statement. The second result is false when the
// / statement could not be evaluated; the error has been logged.
func (this *Preprocessor) evaluateCondition(statement string, buf *TextBuffer, directiveStart int, section string) (bool, bool) {
	expr, ok := this.replaceDefined(statement)
	if !ok {
		this.errorAt(section, buf, directiveStart, "Syntax error while parsing pre-processor directive: %s.", strings.TrimSpace(statement))
		return false, false
	}
	expr, _ = this.macros_.ExpandString(this.tokenizer_, expr)
	this.reportCycles(section)
	expr = strings.TrimSpace(RewriteConditionOperators(expr))
	if expr == "" {
		this.errorAt(section, buf, directiveStart, "Syntax error while parsing pre-processor directive: %s.", strings.TrimSpace(statement))
		return false, false
	}

	result, err := this.evaluator_(expr)
	if err != nil {
		this.errorAt(section, buf, directiveStart, "Syntax error or undefined symbol while parsing pre-processor directive: %s.", strings.TrimSpace(statement))
		return false, false
	}
	return result, true
}

// Drop comments and replace every "defined ( NAME )" with true or false.
func (this *Preprocessor) replaceDefined(statement string) (string, bool) {
	var out strings.Builder
	buf := NewTextBuffer(statement)
	t := CursorOver(buf)
	for t.Next(this.tokenizer_, buf, false) {
		if t.TokenClass == TOKEN_COMMENT {
			out.WriteByte(' ')
			continue
		}
		if t.TokenClass != TOKEN_IDENTIFIER || t.Token(buf) != "defined" {
			out.WriteString(t.Token(buf))
			continue
		}
		if !t.Next(this.tokenizer_, buf, true) || !t.IsPunct(buf, '(') {
			return "", false
		}
		if !t.Next(this.tokenizer_, buf, true) || !IsValidMacro(t.Token(buf)) {
			return "", false
		}
		name := t.Token(buf)
		if !t.Next(this.tokenizer_, buf, true) || !t.IsPunct(buf, ')') {
			return "", false
		}
		if this.macros_.IsDefined(name) {
			out.WriteString(" true ")
		} else {
			out.WriteString(" false ")
		}
	}
	return out.String(), true
}

// / Blank everything from the cursor up to the #else, #elif, #elseif or
// / #endif that closes the current block, leaving the cursor on its '#'.
// / Nested conditional blocks are skipped whole. Line breaks survive.
func (this *Preprocessor) excludeCode(buf *TextBuffer, t *Cursor) {
	nested := 0
	for t.Next(this.tokenizer_, buf, false) {
		if t.TokenClass == TOKEN_UNKNOWN && buf.At(t.TokenStart) == '#' {
			hash := t.TokenStart
			save := t.Position
			directive := ""
			if t.Next(this.tokenizer_, buf, true) {
				directive = t.Token(buf)
			}
			switch directive {
			case "if", "ifdef", "ifndef":
				nested++
			case "endif":
				if nested == 0 {
					t.Position = hash
					return
				}
				nested--
			case "else", "elif", "elseif":
				if nested == 0 {
					t.Position = hash
					return
				}
			}
			t.Position = save
			buf.Overwrite(hash, save-hash)
			continue
		}
		buf.Overwrite(t.TokenStart, t.TokenLength)
	}
}
