package shader_go

import "sort"

// / The macro name reserved for the logical name of the including script
// / while an #include is being processed.
const kParentScriptMacro = "_PARENTSCRIPT"

// / An ordered name -> replacement text table, scoped to one preprocessing
// / session (one top-level script plus its includes).
type MacroTable struct {
	values_ map[string]string
	names_  []string

	// Names found referencing themselves during expansion.
	cycles_ []string
}

func NewMacroTable() *MacroTable {
	ret := MacroTable{}
	ret.values_ = map[string]string{}
	return &ret
}

// / Build a table from application supplied definitions. Names are added
// / in sorted order so the table is deterministic.
func NewMacroTableFrom(defs map[string]string) *MacroTable {
	ret := NewMacroTable()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ret.Define(name, defs[name])
	}
	return ret
}

// / Add a binding. The first binding wins; returns false if the name was
// / already defined.
func (this *MacroTable) Define(name, value string) bool {
	if _, ok := this.values_[name]; ok {
		return false
	}
	this.values_[name] = value
	this.names_ = append(this.names_, name)
	return true
}

// / Set a binding, replacing any existing value.
func (this *MacroTable) Set(name, value string) {
	if _, ok := this.values_[name]; !ok {
		this.names_ = append(this.names_, name)
	}
	this.values_[name] = value
}

// / Remove a binding. Removing an unknown name is not an error.
func (this *MacroTable) Undefine(name string) {
	if _, ok := this.values_[name]; !ok {
		return
	}
	delete(this.values_, name)
	for i, n := range this.names_ {
		if n == name {
			this.names_ = append(this.names_[:i], this.names_[i+1:]...)
			break
		}
	}
}

func (this *MacroTable) IsDefined(name string) bool {
	_, ok := this.values_[name]
	return ok
}

func (this *MacroTable) Lookup(name string) (string, bool) {
	v, ok := this.values_[name]
	return v, ok
}

// / Names in definition order.
func (this *MacroTable) Names() []string {
	return append([]string{}, this.names_...)
}

func (this *MacroTable) Len() int { return len(this.names_) }

func (this *MacroTable) Clone() *MacroTable {
	ret := NewMacroTable()
	for _, name := range this.names_ {
		ret.Define(name, this.values_[name])
	}
	return ret
}

// / Snapshot as a plain map.
func (this *MacroTable) Map() map[string]string {
	ret := make(map[string]string, len(this.values_))
	for k, v := range this.values_ {
		ret[k] = v
	}
	return ret
}

// / Names that were left unexpanded because they referenced themselves
// / since the last call. Clears the list.
func (this *MacroTable) TakeCycles() []string {
	ret := this.cycles_
	this.cycles_ = nil
	return ret
}

// / Determine if the specified macro name is a legal identifier once
// / surrounding blanks are trimmed.
func IsValidMacro(name string) bool {
	start, end := 0, len(name)
	for start < end && (name[start] == ' ' || name[start] == '\t') {
		start++
	}
	for end > start && (name[end-1] == ' ' || name[end-1] == '\t') {
		end--
	}
	name = name[start:end]
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentChar(name[i]) {
			return false
		}
	}
	return true
}

// / Expand every defined identifier within the cursor's section, recursively
// / expanding replacement text first. Returns true if anything was
// / substituted. The cursor's SectionEnd follows any growth of the buffer.
// /
// / A macro that references itself, directly or through other macros, is
// / left verbatim at the point where the reference recurs.
func (this *MacroTable) ExpandStatement(tok Tokenizer, buf *TextBuffer, t *Cursor) bool {
	return this.expand(tok, buf, t, map[string]bool{})
}

func (this *MacroTable) expand(tok Tokenizer, buf *TextBuffer, t *Cursor, active map[string]bool) bool {
	modified := false
	for t.Position <= t.SectionEnd {
		if !t.Next(tok, buf, true) {
			break
		}
		if t.TokenClass != TOKEN_IDENTIFIER {
			continue
		}
		name := t.Token(buf)
		value, ok := this.values_[name]
		if !ok {
			continue
		}
		if active[name] {
			this.noteCycle(name)
			continue
		}
		modified = true

		child := NewTextBuffer(value)
		tChild := CursorOver(child)
		active[name] = true
		this.expand(tok, child, &tChild, active)
		delete(active, name)

		expanded := child.String()
		if delta := buf.ReplaceSection(t.TokenStart, t.TokenLength, expanded); delta != 0 {
			t.Reindex(delta)
			t.Position = t.TokenStart + len(expanded)
		}
	}
	return modified
}

func (this *MacroTable) noteCycle(name string) {
	for _, n := range this.cycles_ {
		if n == name {
			return
		}
	}
	this.cycles_ = append(this.cycles_, name)
}

// / Expand a free-standing statement and return the result.
func (this *MacroTable) ExpandString(tok Tokenizer, text string) (string, bool) {
	buf := NewTextBuffer(text)
	t := CursorOver(buf)
	modified := this.ExpandStatement(tok, buf, &t)
	return buf.String(), modified
}
