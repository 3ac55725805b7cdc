package shader_go

import "fmt"

// / Writes diagnostic copies of generated text to Build/. Each kind of dump
// / ("as", "vs", "ps") has its own running counter.
type DebugDump struct {
	disk_     DiskInterface
	enabled_  bool
	counters_ map[string]int
}

func NewDebugDump(disk DiskInterface, enabled bool) *DebugDump {
	ret := DebugDump{}
	ret.disk_ = disk
	ret.enabled_ = enabled
	ret.counters_ = map[string]int{}
	return &ret
}

func (this *DebugDump) Enabled() bool { return this != nil && this.enabled_ }

// / Build/as_<name>_0000.txt
func (this *DebugDump) Script(name, contents string) {
	this.write("as", "Build/as_%s_%04d.txt", name, contents)
}

// / Build/vs_<name>_0000_HLSL.txt or Build/ps_<name>_0000_HLSL.txt
func (this *DebugDump) Shader(kind, name, contents string) {
	this.write(kind, "Build/"+kind+"_%s_%04d_HLSL.txt", name, contents)
}

func (this *DebugDump) write(kind, pattern, name, contents string) {
	if !this.Enabled() {
		return
	}
	n := this.counters_[kind]
	this.counters_[kind] = n + 1
	path := fmt.Sprintf(pattern, name, n)

	var err string
	if !this.disk_.MakeDirs(path, &err) {
		Warning("unable to create directory for '%s': %s", path, err)
		return
	}
	this.disk_.WriteFile(path, contents)
}
