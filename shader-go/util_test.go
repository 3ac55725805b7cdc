package shader_go

import (
	"fmt"
	"sort"
	"strings"
	"testing"
)

// An in-memory DiskInterface.
type VirtualDisk struct {
	files_   map[string]string
	dirs_    map[string]bool
	reads_   []string
	removed_ []string
}

func NewVirtualDisk() *VirtualDisk {
	ret := VirtualDisk{}
	ret.files_ = map[string]string{}
	ret.dirs_ = map[string]bool{}
	return &ret
}

func (this *VirtualDisk) Create(path, contents string) { this.files_[path] = contents }

func (this *VirtualDisk) Contents(path string) (string, bool) {
	c, ok := this.files_[path]
	return c, ok
}

func (this *VirtualDisk) Files() []string {
	var ret []string
	for k := range this.files_ {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (this *VirtualDisk) ReadFile(path string, contents *string, err *string) StatusEnum {
	this.reads_ = append(this.reads_, path)
	c, ok := this.files_[path]
	if !ok {
		*err = "No such file or directory"
		return NotFound
	}
	*contents = c
	return Okay
}

func (this *VirtualDisk) WriteFile(path string, contents string) bool {
	this.files_[path] = contents
	return true
}

func (this *VirtualDisk) MakeDirs(path string, err *string) bool {
	this.dirs_[DirectoryName(path)] = true
	return true
}

func (this *VirtualDisk) RemoveFile(path string) int {
	if _, ok := this.files_[path]; !ok {
		return 1
	}
	delete(this.files_, path)
	this.removed_ = append(this.removed_, path)
	return 0
}

// A Logger that keeps every line.
type RecordingLogger struct {
	Lines []string
}

func (this *RecordingLogger) Write(severity Severity, format string, args ...interface{}) {
	prefix := "info: "
	switch severity {
	case SEVERITY_ERROR:
		prefix = "error: "
	case SEVERITY_WARNING:
		prefix = "warning: "
	}
	this.Lines = append(this.Lines, prefix+fmt.Sprintf(format, args...))
}

func (this *RecordingLogger) Contains(sub string) bool {
	for _, l := range this.Lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func (this *RecordingLogger) Errors() int {
	n := 0
	for _, l := range this.Lines {
		if strings.HasPrefix(l, "error: ") {
			n++
		}
	}
	return n
}

// Trimmed lines of text.
func trimmedLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.Join(strings.Fields(lines[i]), " ")
	}
	return lines
}

func TestSpliceSlash(t *testing.T) {
	if got := spliceSlash("", "a.h"); got != "a.h" {
		t.Errorf("got %q", got)
	}
	if got := spliceSlash("sys://Shaders", "a.h"); got != "sys://Shaders/a.h" {
		t.Errorf("got %q", got)
	}
}

func TestDirectoryName(t *testing.T) {
	tests := []struct{ in, dir, base string }{
		{"sys://Shaders/SystemDefs.shh", "sys://Shaders", "SystemDefs"},
		{"a\\b.sh", "a", "b"},
		{"main.as", "", "main"},
	}
	for _, tt := range tests {
		if got := DirectoryName(tt.in); got != tt.dir {
			t.Errorf("DirectoryName(%q) = %q, want %q", tt.in, got, tt.dir)
		}
		if got := BaseNameNoExt(tt.in); got != tt.base {
			t.Errorf("BaseNameNoExt(%q) = %q, want %q", tt.in, got, tt.base)
		}
	}
}

func TestSpellcheckStringV(t *testing.T) {
	if got := SpellcheckStringV("inclde", kDirectives); got != "include" {
		t.Errorf("got %q", got)
	}
	if got := SpellcheckStringV("pragma", kDirectives); got != "" {
		t.Errorf("got %q", got)
	}
}
