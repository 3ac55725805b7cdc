package shader_go

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"git.sr.ht/~sircmpwn/getopt"
)

const kShadercVersion = "1.4.0"

const kShaderLogName = "shaders.db"

type Options struct {
	/// Directory to change into before doing anything else.
	WorkingDir string

	/// Directory "sys://" names are resolved against.
	SystemDir string

	/// Tool to run rather than checking scripts.
	Tool *Tool
}

// / The type of functions that are the entry points to tools (subcommands).
type ToolFunc func(*Options, *[]string) int

// / Subtools, accessible via "-t foo".
type Tool struct {
	/// Short name of the tool.
	Name string

	/// Description (shown in "-t list").
	Desc string

	/// Implementation of the tool.
	Func1 ToolFunc
}

// / State shared by the command line front end and its tools.
type ShaderMain struct {
	Config_ *Config

	DiskInterface *RealDiskInterface
	Engine        *FuncEngine
	Tokenizer     Tokenizer
	Log           Logger
	Dump          *DebugDump
}

func NewShaderMain(config *Config, options *Options) *ShaderMain {
	ret := ShaderMain{}
	ret.Config_ = config
	ret.DiskInterface = NewRealDiskInterface("", options.SystemDir)
	ret.Engine = NewFuncEngine()
	ret.Tokenizer = NewScriptTokenizer()
	ret.Log = ConsoleLogger{}
	ret.Dump = NewDebugDump(ret.DiskInterface, config.DebugDump)
	return &ret
}

// / ".as" files are plain scripts; everything else is a shader script.
func ScriptKindFor(name string) ScriptKind {
	if strings.EqualFold(filepath.Ext(name), ".as") {
		return SCRIPT_KIND_PLAIN
	}
	return SCRIPT_KIND_SHADER
}

// / Load a script, logging failures. Returns nil if it does not load.
func (this *ShaderMain) LoadScript(name string) *ShaderScript {
	script := NewShaderScript(name, ScriptKindFor(name))
	switch script.Load(this.Engine, this.DiskInterface, this.Tokenizer, this.Log, this.Config_) {
	case LOAD_SUCCESS:
		return script
	case LOAD_NOT_FOUND:
		if this.Config_.Sandbox {
			Warning("'%s' not found (sandbox mode)", name)
			return script
		}
		Error("'%s' not found", name)
	}
	return nil
}

func (this *ShaderMain) dumpScript(script *ShaderScript) {
	if !this.Dump.Enabled() {
		return
	}
	var text strings.Builder
	for _, s := range script.Sections() {
		text.WriteString(s.Code)
	}
	this.Dump.Script(BaseNameNoExt(script.Name()), text.String())
}

// / The shader log of the cache directory, or nil if there is none.
func (this *ShaderMain) openShaderLog() *ShaderLog {
	path := this.DiskInterface.Resolve(spliceSlash(this.Config_.CacheDir, kShaderLogName))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	shaderLog := NewShaderLog()
	var err string
	if !shaderLog.Open(path, &err) {
		Error("opening shader log: %s", err)
		return nil
	}
	return shaderLog
}

// / Check every script named on the command line.
func (this *ShaderMain) CheckScripts(args []string) int {
	if len(args) == 0 {
		Error("no input scripts")
		return 1
	}
	failed := 0
	for _, name := range args {
		script := this.LoadScript(name)
		if script == nil {
			failed++
			continue
		}
		this.dumpScript(script)
		Info("%s: %d section(s), %d source file(s), %d constant buffer(s), %d sampler block(s), %d shader call(s), fingerprint %016x",
			name, len(script.Sections()), len(script.SourceFiles()), len(script.ConstantBuffers()),
			len(script.SamplerBlocks()), len(script.ShaderCallFunctions()), script.Fingerprint())
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func (this *ShaderMain) ToolSections(options *Options, args *[]string) int {
	for _, name := range *args {
		script := this.LoadScript(name)
		if script == nil {
			return 1
		}
		for _, s := range script.Sections() {
			fmt.Printf("// section %s\n%s\n", s.Name, s.Code)
		}
	}
	return 0
}

func (this *ShaderMain) ToolMacros(options *Options, args *[]string) int {
	for _, name := range *args {
		script := this.LoadScript(name)
		if script == nil {
			return 1
		}
		defs := NewMacroTableFrom(script.Macros())
		for _, m := range defs.Names() {
			v, _ := defs.Lookup(m)
			fmt.Printf("%s=%s\n", m, v)
		}
	}
	return 0
}

func printConstants(constants []ConstantDesc) {
	for i := range constants {
		c := &constants[i]
		fmt.Printf("    %-24s %-12s offset %4d length %4d align %2d", c.Name, c.FullTypeName, c.Offset, c.TotalLength, c.Alignment)
		if c.IsArray {
			fmt.Printf(" elements %d", c.Elements)
		}
		fmt.Printf("\n")
	}
}

func scopedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "::" + name
}

func (this *ShaderMain) ToolDescriptors(options *Options, args *[]string) int {
	for _, name := range *args {
		script := this.LoadScript(name)
		if script == nil {
			return 1
		}
		for _, t := range script.ConstantTypes() {
			fmt.Printf("ctype %s (length %d, align %d)\n", scopedName(t.ParentNamespace, t.Name), t.Length, t.Alignment)
			printConstants(t.Constants)
		}
		for _, cb := range script.ConstantBuffers() {
			fmt.Printf("cbuffer %s (length %d, register %d, vs %t, ps %t)\n", scopedName(cb.ParentNamespace, cb.Name),
				cb.Length, cb.BufferRegister, cb.BindVS, cb.BindPS)
			printConstants(cb.Constants)
		}
		for _, sb := range script.SamplerBlocks() {
			fmt.Printf("samplers %s\n", scopedName(sb.ParentNamespace, sb.Name))
			for _, s := range sb.Samplers {
				fmt.Printf("    %-24s %-12s register %d\n", s.Name, s.TypeName, s.RegisterIndex)
			}
		}
		for _, f := range script.ShaderCallFunctions() {
			fmt.Printf("shadercall %s: %s\n", scopedName(f.ParentNamespace, f.Name), f.Declaration)
		}
	}
	return 0
}

func (this *ShaderMain) ToolCache(options *Options, args *[]string) int {
	shaderLog := this.openShaderLog()
	if shaderLog == nil {
		Info("no shader log in '%s'", this.Config_.CacheDir)
		return 0
	}
	defer shaderLog.Close()
	var err string
	entries, ok := shaderLog.Entries(&err)
	if !ok {
		Error("%s", err)
		return 1
	}
	for _, e := range entries {
		state := "ok"
		if e.Failed {
			state = "failed"
		}
		fmt.Printf("%-48s %s %-6s %8d %s\n", e.File, e.Stage, state, e.Size,
			time.Unix(e.LastAccess, 0).Format(time.DateTime))
		fmt.Printf("    %s (%d source file(s))\n", e.Identifier, e.Sources)
	}
	return 0
}

func printableText(b []byte) bool {
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || (r < ' ' && r != '\n' && r != '\r' && r != '\t') {
			return false
		}
	}
	return true
}

func (this *ShaderMain) ToolInspect(options *Options, args *[]string) int {
	for _, path := range *args {
		var contents, err string
		if this.DiskInterface.ReadFile(path, &contents, &err) != Okay {
			Error("%s: %s", path, err)
			return 1
		}
		record, ok := DecodeCacheRecord([]byte(contents), &err)
		if !ok {
			Error("%s: %s", path, err)
			return 1
		}
		ident := record.Identifier
		fmt.Printf("%s: %s shader %s entry %s\n", path, stageName(record.Stage), ident.ShaderIdentifier, record.Entry)
		for _, sf := range ident.SourceFiles {
			fmt.Printf("  source %s %s\n", hex.EncodeToString(sf.Hash[:8]), sf.Name)
		}
		fmt.Printf("  parameters %s\n", hex.EncodeToString(ident.ParameterBytes()))
		fmt.Printf("  input signature %s\n", hex.EncodeToString(ident.InputSignatureHash[:]))
		if printableText(record.Bytecode) {
			fmt.Printf("%s\n", record.Bytecode)
		} else {
			fmt.Printf("  %d bytes of bytecode\n", len(record.Bytecode))
		}
	}
	return 0
}

// / Remove cache files that were not used for a number of days.
func (this *ShaderMain) ToolClean(options *Options, args *[]string) int {
	days := 30
	opts, _, err := getopt.Getopts(append([]string{"clean"}, *args...), "a:h")
	if err != nil {
		Error("%v", err)
		return 1
	}
	for _, opt := range opts {
		switch opt.Option {
		case 'a':
			value, err := strconv.Atoi(opt.Value)
			if err != nil || value < 0 {
				Error("invalid -a parameter")
				return 1
			}
			days = value
		default:
			fmt.Printf("usage: shaderc -t clean [-a DAYS]\n\n" +
				"options:\n" +
				"  -a DAYS  remove permutations unused for DAYS days [default=30]\n")
			return 1
		}
	}

	shaderLog := this.openShaderLog()
	if shaderLog == nil {
		return 0
	}
	defer shaderLog.Close()
	var err1 string
	before := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	stale, ok := shaderLog.Stale(before, &err1)
	if !ok {
		Error("%s", err1)
		return 1
	}
	removed := 0
	for _, e := range stale {
		if this.DiskInterface.RemoveFile(spliceSlash(this.Config_.CacheDir, e.File)) < 0 {
			Error("unable to remove '%s'", e.File)
			continue
		}
		if shaderLog.Remove(e.File, &err1) {
			removed++
		}
	}
	Info("removed %d permutation(s)", removed)
	return 0
}

// / Download cache files from the shared cache server into the cache
// / directory.
func (this *ShaderMain) ToolFetch(options *Options, args *[]string) int {
	if this.Config_.Remote == "" {
		Error("no shared cache server; use -r ADDR")
		return 1
	}
	remote := NewRemoteCache(this.Config_.Remote)
	for _, name := range *args {
		var data []byte
		var err string
		switch remote.Fetch(name, &data, &err) {
		case NotFound:
			Warning("'%s' not found on %s", name, remote.Address())
			continue
		case OtherError:
			Error("%s", err)
			return 1
		}
		if _, ok := DecodeCacheRecord(data, &err); !ok {
			Error("%s: %s", name, err)
			return 1
		}
		path := spliceSlash(this.Config_.CacheDir, name)
		if !this.DiskInterface.MakeDirs(path, &err) || !this.DiskInterface.WriteFile(path, string(data)) {
			Error("unable to write '%s' %s", path, err)
			return 1
		}
		Info("fetched %s", name)
	}
	return 0
}

func ChooseTool(tool_name string, shaderMain *ShaderMain) *Tool {
	this := shaderMain
	kTools := []Tool{
		{"sections", "print the preprocessed sections of scripts", this.ToolSections},
		{"macros", "print the macros defined after preprocessing", this.ToolMacros},
		{"descriptors", "list constant buffers, types, samplers and shader calls", this.ToolDescriptors},
		{"cache", "list the permutations recorded in the cache directory", this.ToolCache},
		{"inspect", "decode shader cache files", this.ToolInspect},
		{"clean", "remove permutations that were not used recently", this.ToolClean},
		{"fetch", "download cache files from the shared cache server", this.ToolFetch},
	}

	if tool_name == "list" {
		fmt.Printf("shaderc subtools:\n")
		for _, tool := range kTools {
			fmt.Printf("%11s  %s\n", tool.Name, tool.Desc)
		}
		return nil
	}

	for _, tool := range kTools {
		if tool.Name == tool_name {
			return &tool
		}
	}

	words := []string{}
	for _, tool := range kTools {
		words = append(words, tool.Name)
	}
	suggestion := SpellcheckStringV(tool_name, words)
	if suggestion != "" {
		Error("unknown tool '%s', did you mean '%s'?", tool_name, suggestion)
	} else {
		Error("unknown tool '%s'", tool_name)
	}
	return nil
}

// / Enable a debugging mode. Returns false if shaderc should exit instead
// / of continuing.
func DebugEnable(name string, config *Config) bool {
	switch name {
	case "list":
		fmt.Printf("debugging modes:\n" +
			"  dump     write preprocessed scripts and generated shaders to Build/\n" +
			"  stats    print operation counts/timing info\n")
		return false
	case "dump":
		config.DebugDump = true
		return true
	case "stats":
		GMetrics = NewMetrics()
		return true
	}
	suggestion := SpellcheckStringV(name, []string{"dump", "stats"})
	if suggestion != "" {
		Error("unknown debug setting '%s', did you mean '%s'?", name, suggestion)
	} else {
		Error("unknown debug setting '%s'", name)
	}
	return false
}

// / Print usage information.
func UsageMain() {
	fmt.Fprintf(os.Stderr,
		"usage: shaderc [options] [scripts...]\n"+
			"\n"+
			"checks that the given scripts preprocess and build.\n"+
			"\n"+
			"options:\n"+
			"  --version  print shaderc version (\"%s\")\n"+
			"\n"+
			"  -C DIR     change to DIR before doing anything else\n"+
			"  -S DIR     resolve sys:// names against DIR [default=.]\n"+
			"  -c DIR     cache directory [default=Cache/Shaders]\n"+
			"  -D NAME[=VALUE]  define a macro for every script\n"+
			"  -I FILE    system definitions include, '' to disable\n"+
			"  -m MODEL   target shader model, 3 or 4 [default=4]\n"+
			"  -r ADDR    shared shader cache server\n"+
			"  -s         sandbox mode, tolerate missing scripts\n"+
			"\n"+
			"  -d MODE    enable debugging (use '-d list' to list modes)\n"+
			"  -t TOOL    run a subtool (use '-t list' to list subtools)\n"+
			"    tool flags follow '--', as in 'shaderc -t clean -- -a 7'\n",
		kShadercVersion)
}

// / Parse argv for command-line options.
// / Returns an exit code, or -1 if shaderc should continue.
func ReadFlags(args *[]string, options *Options, config *Config) (int, string) {
	opts, optind, err := getopt.Getopts(*args, "C:S:c:D:I:m:r:sd:t:hv")
	if err != nil {
		Error("%v", err)
		return 1, ""
	}
	*args = (*args)[optind:]
	tool := ""
	for _, optV := range opts {
		optarg := optV.Value
		switch optV.Option {
		case 'C':
			options.WorkingDir = optarg
		case 'S':
			options.SystemDir = optarg
		case 'c':
			config.CacheDir = optarg
		case 'D':
			if err := config.Define(optarg); err != nil {
				Error("%v", err)
				return 1, ""
			}
		case 'I':
			config.SystemDefinitions = optarg
		case 'm':
			model, err := ParseShaderModel(optarg)
			if err != nil {
				Error("%v", err)
				return 1, ""
			}
			config.ShaderModel = model
		case 'r':
			config.Remote = optarg
		case 's':
			config.Sandbox = true
		case 'd':
			if !DebugEnable(optarg, config) {
				return 1, ""
			}
		case 't':
			tool = optarg
		case 'v':
			fmt.Printf("%s\n", kShadercVersion)
			return 0, ""
		default: // case 'h':
			UsageMain()
			return 1, ""
		}
	}
	return -1, tool
}

// / Entry point of the shaderc command.
func RealMain(args []string) int {
	config := NewConfig()
	options := Options{}
	if len(args) > 1 && args[1] == "--version" {
		fmt.Printf("%s\n", kShadercVersion)
		return 0
	}

	exit_code, tool_name := ReadFlags(&args, &options, config)
	if exit_code >= 0 {
		return exit_code
	}

	if options.WorkingDir != "" {
		if tool_name == "" {
			Info("Entering directory `%s'", options.WorkingDir)
		}
		if err := os.Chdir(options.WorkingDir); err != nil {
			Fatal("chdir to '%s' - %v", options.WorkingDir, err)
		}
	}

	shaderMain := NewShaderMain(config, &options)
	if tool_name != "" {
		options.Tool = ChooseTool(tool_name, shaderMain)
		if options.Tool == nil {
			if tool_name == "list" {
				return 0
			}
			return 1
		}
		result := options.Tool.Func1(&options, &args)
		if GMetrics != nil {
			GMetrics.Report()
		}
		return result
	}

	result := shaderMain.CheckScripts(args)
	if GMetrics != nil {
		GMetrics.Report()
	}
	return result
}
