package shader_go

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type StatusEnum int8

const (
	Okay       StatusEnum = 0
	NotFound   StatusEnum = 1
	OtherError StatusEnum = 2
)

// / Interface for accessing the disk. Logical names may carry a protocol
// / prefix ("sys://Shaders/SystemDefs.shh"); implementations map them to
// / real locations.
type DiskInterface interface {
	ReadFile(path string, contents *string, err *string) StatusEnum
	WriteFile(path string, contents string) bool
	MakeDirs(path string, err *string) bool
	RemoveFile(path string) int
}

type RealDiskInterface struct {
	/// Directory that relative names are resolved against.
	Root string
	/// Directory that "sys://" names are resolved against.
	SystemRoot string
}

func NewRealDiskInterface(root, systemRoot string) *RealDiskInterface {
	ret := RealDiskInterface{}
	ret.Root = root
	ret.SystemRoot = systemRoot
	return &ret
}

// / Map a logical name to a path on disk.
func (this *RealDiskInterface) Resolve(name string) string {
	if strings.HasPrefix(name, "sys://") {
		return filepath.Join(this.SystemRoot, filepath.FromSlash(strings.TrimPrefix(name, "sys://")))
	}
	if idx := strings.Index(name, "://"); idx >= 0 {
		name = name[idx+3:]
	}
	if filepath.IsAbs(name) || this.Root == "" {
		return filepath.FromSlash(name)
	}
	return filepath.Join(this.Root, filepath.FromSlash(name))
}

func (this *RealDiskInterface) ReadFile(path string, contents, err *string) StatusEnum {
	real := this.Resolve(path)
	buf, err1 := os.ReadFile(real)
	if errors.Is(err1, os.ErrNotExist) {
		*err = err1.Error()
		return NotFound
	}
	if err1 != nil {
		*err = err1.Error()
		return OtherError
	}
	*contents = string(buf)
	return Okay
}

// / Create a file, with the specified name and contents
// / Returns true on success, false on failure
func (this *RealDiskInterface) WriteFile(path string, contents string) bool {
	real := this.Resolve(path)
	fp, err := os.OpenFile(real, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0664)
	if err != nil {
		Error("WriteFile(%s): Unable to create file. %v", real, err)
		return false
	}

	_, err = io.WriteString(fp, contents)
	if err != nil {
		Error("WriteFile(%s): Unable to write to the file. %v", real, err)
		fp.Close()
		return false
	}

	if err = fp.Close(); err != nil {
		Error("WriteFile(%s): Unable to close the file. %v", real, err)
		return false
	}
	return true
}

// / Create the directory holding path, and its parents.
func (this *RealDiskInterface) MakeDirs(path string, err *string) bool {
	dir := filepath.Dir(this.Resolve(path))
	if err1 := os.MkdirAll(dir, os.ModePerm); err1 != nil {
		*err = err1.Error()
		return false
	}
	return true
}

// / Remove the file named @a path. It behaves like 'rm -f path' so no errors
// / are reported if it does not exists.
// / @returns 0 if the file has been removed,
// /          1 if the file does not exist, and
// /          -1 if an error occurs.
func (this *RealDiskInterface) RemoveFile(path string) int {
	real := this.Resolve(path)
	if _, err := os.Stat(real); errors.Is(err, os.ErrNotExist) {
		return 1
	}
	if err := os.Remove(real); err != nil {
		return -1
	}
	return 0
}
