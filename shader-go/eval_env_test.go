package shader_go

import (
	"reflect"
	"testing"
)

func TestMacroTableDefine(t *testing.T) {
	m := NewMacroTable()
	if !m.Define("A", "1") {
		t.Fatal("first Define failed")
	}
	if m.Define("A", "2") {
		t.Error("duplicate Define succeeded")
	}
	if v, _ := m.Lookup("A"); v != "1" {
		t.Errorf("first binding lost, got %q", v)
	}
	m.Set("A", "3")
	if v, _ := m.Lookup("A"); v != "3" {
		t.Errorf("Set: got %q", v)
	}
	m.Define("B", "")
	m.Define("C", "x")
	m.Undefine("B")
	m.Undefine("missing")
	if m.IsDefined("B") {
		t.Error("B still defined")
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("Names = %q", got)
	}
	c := m.Clone()
	c.Define("D", "")
	if m.IsDefined("D") || m.Len() != 2 {
		t.Error("Clone shares state")
	}
}

func TestNewMacroTableFromIsSorted(t *testing.T) {
	m := NewMacroTableFrom(map[string]string{"Z": "1", "A": "2", "M": "3"})
	if got := m.Names(); !reflect.DeepEqual(got, []string{"A", "M", "Z"}) {
		t.Errorf("Names = %q", got)
	}
	if got := m.Map(); len(got) != 3 || got["M"] != "3" {
		t.Errorf("Map = %v", got)
	}
}

func TestIsValidMacro(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"WIDTH", true},
		{"  _x1\t", true},
		{"1abc", false},
		{"", false},
		{"a-b", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if got := IsValidMacro(tt.name); got != tt.want {
			t.Errorf("IsValidMacro(%q) = %t, want %t", tt.name, got, tt.want)
		}
	}
}

func TestMacroTableExpandString(t *testing.T) {
	tests := []struct {
		name     string
		defs     [][2]string
		input    string
		want     string
		modified bool
	}{
		{"simple", [][2]string{{"WIDTH", "4"}}, "x = WIDTH;", "x = 4;", true},
		{"nested", [][2]string{{"A", "B + 1"}, {"B", "2"}}, "A", "2 + 1", true},
		{"shrink", [][2]string{{"LONGNAME", "1"}}, "LONGNAME+2", "1       +2", true},
		{"untouched", [][2]string{{"A", "1"}}, "b + c", "b + c", false},
		{"comment skipped", [][2]string{{"A", "1"}}, "// A\nA", "// A\n1", true},
		{"self reference", [][2]string{{"A", "A + 1"}}, "A", "A + 1", true},
		{"mutual reference", [][2]string{{"A", "B"}, {"B", "A"}}, "A", "A", true},
	}
	tok := NewScriptTokenizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMacroTable()
			for _, d := range tt.defs {
				m.Define(d[0], d[1])
			}
			got, modified := m.ExpandString(tok, tt.input)
			if got != tt.want || modified != tt.modified {
				t.Errorf("ExpandString(%q) = %q, %t; want %q, %t", tt.input, got, modified, tt.want, tt.modified)
			}
		})
	}
}

func TestMacroTableExpansionIsIdempotent(t *testing.T) {
	m := NewMacroTable()
	m.Define("WIDTH", "4")
	m.Define("AREA", "WIDTH * HEIGHT")
	m.Define("HEIGHT", "(WIDTH + 1)")
	tok := NewScriptTokenizer()
	for _, input := range []string{"x = AREA;", "float a[WIDTH];", "// AREA\nHEIGHT", "none"} {
		once, _ := m.ExpandString(tok, input)
		twice, modified := m.ExpandString(tok, once)
		if modified || twice != once {
			t.Errorf("%q: second expansion %q -> %q", input, once, twice)
		}
	}
}

func TestMacroTableReportsCycles(t *testing.T) {
	m := NewMacroTable()
	m.Define("A", "B")
	m.Define("B", "A")
	m.ExpandString(NewScriptTokenizer(), "A B")
	if got := m.TakeCycles(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("cycles = %q", got)
	}
	if got := m.TakeCycles(); got != nil {
		t.Errorf("cycles not cleared: %q", got)
	}
}
