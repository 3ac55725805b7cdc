package shader_go

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

const EXIT_FAILURE = 1

var (
	errorPrefix   = color.New(color.FgRed, color.Bold).SprintFunc()
	warningPrefix = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// / Log a fatal message and exit.
func Fatal(msg string, ap ...interface{}) {
	fmt.Fprintf(os.Stderr, "shaderc: %s ", errorPrefix("fatal:"))
	fmt.Fprintf(os.Stderr, msg, ap...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(EXIT_FAILURE)
}

// / Log an error message.
func Error(msg string, ap ...interface{}) {
	fmt.Fprintf(os.Stderr, "shaderc: %s ", errorPrefix("error:"))
	fmt.Fprintf(os.Stderr, msg, ap...)
	fmt.Fprint(os.Stderr, "\n")
}

// / Log a warning message.
func Warning(msg string, ap ...interface{}) {
	fmt.Fprintf(os.Stderr, "shaderc: %s ", warningPrefix("warning:"))
	fmt.Fprintf(os.Stderr, msg, ap...)
	fmt.Fprint(os.Stderr, "\n")
}

// / Log an informational message.
func Info(msg string, ap ...interface{}) {
	fmt.Fprint(os.Stdout, "shaderc: ")
	fmt.Fprintf(os.Stdout, msg, ap...)
	fmt.Fprint(os.Stdout, "\n")
}

type Severity int8

const (
	SEVERITY_INFO Severity = iota
	SEVERITY_WARNING
	SEVERITY_ERROR
)

// / The logging boundary. Every failure path writes exactly one line here.
type Logger interface {
	Write(severity Severity, format string, args ...interface{})
}

// / Forwards to the package level Error/Warning/Info helpers.
type ConsoleLogger struct{}

func (ConsoleLogger) Write(severity Severity, format string, args ...interface{}) {
	format = strings.TrimRight(format, "\n")
	switch severity {
	case SEVERITY_ERROR:
		Error(format, args...)
	case SEVERITY_WARNING:
		Warning(format, args...)
	default:
		Info(format, args...)
	}
}

func spliceSlash(dir, file string) string {
	if dir == "" {
		return file
	}
	return dir + "/" + file
}

// / Directory part of a logical stream name ("sys://Shaders/a.sh" -> "sys://Shaders").
func DirectoryName(name string) string {
	idx := strings.LastIndexAny(name, "/\\")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// / File name without directory or extension.
func BaseNameNoExt(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
