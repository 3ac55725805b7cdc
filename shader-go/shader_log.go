package shader_go

import (
	"errors"
	"os"

	"zombiezen.com/go/sqlite"
)

// / One permutation known to the shader log.
type ShaderLogEntry struct {
	File       string
	Stage      ShaderStage
	Identifier string
	Sources    int
	/// Generation or compilation failed; no cache file exists.
	Failed     bool
	Size       int64
	CreatedAt  int64
	LastAccess int64
}

// / Persistent index of the permutations generated into a cache directory.
// / Backed by an sqlite database next to the cache files; used by the
// / "list" and "clean" tools.
type ShaderLog struct {
	file_      *sqlite.Conn
	file_path_ string

	stmtRecord *sqlite.Stmt
	stmtTouch  *sqlite.Stmt
	stmtAll    *sqlite.Stmt
	stmtStale  *sqlite.Stmt
	stmtRemove *sqlite.Stmt
}

func NewShaderLog() *ShaderLog {
	ret := ShaderLog{}
	return &ret
}

const kShaderLogColumns = "`file`, `stage`, `identifier`, `sources`, `failed`, `size`, `created_at`, `last_access`"

func (this *ShaderLog) prepare(query string, err *string) *sqlite.Stmt {
	stmt, err1 := this.file_.Prepare(query)
	if err1 != nil {
		*err = err1.Error()
		return nil
	}
	return stmt
}

// / Open (creating if needed) the log at path.
func (this *ShaderLog) Open(path string, err *string) bool {
	if this.file_ != nil {
		return true
	}
	this.file_path_ = path
	needCreateTable := false
	if _, err1 := os.Stat(path); errors.Is(err1, os.ErrNotExist) {
		needCreateTable = true
	} else if err1 != nil {
		*err = err1.Error()
		return false
	}
	flag := sqlite.OpenReadWrite
	if needCreateTable {
		flag |= sqlite.OpenCreate
	}
	var err1 error
	this.file_, err1 = sqlite.OpenConn(path, flag)
	if err1 != nil {
		*err = err1.Error()
		return false
	}
	if needCreateTable {
		stmt := this.prepare("CREATE TABLE IF NOT EXISTS shader_log (`file` TEXT PRIMARY KEY, "+
			"`stage` INTEGER, `identifier` TEXT, `sources` INTEGER, `failed` INTEGER, `size` INTEGER, "+
			"`created_at` INTEGER, `last_access` INTEGER);", err)
		if stmt == nil {
			return false
		}
		if _, err1 := stmt.Step(); err1 != nil {
			*err = err1.Error()
			return false
		}
	}

	this.stmtRecord = this.prepare("INSERT INTO shader_log ("+kShaderLogColumns+") VALUES"+
		" ($file, $stage, $identifier, $sources, $failed, $size, $now, $now) ON CONFLICT(file)"+
		" DO UPDATE SET `failed`=$failed, `size`=$size, `last_access`=$now;", err)
	this.stmtTouch = this.prepare("UPDATE shader_log SET `last_access`=$now WHERE `file`=$file;", err)
	this.stmtAll = this.prepare("SELECT "+kShaderLogColumns+" FROM shader_log ORDER BY `identifier`, `stage`;", err)
	this.stmtStale = this.prepare("SELECT "+kShaderLogColumns+" FROM shader_log WHERE `last_access` < $before;", err)
	this.stmtRemove = this.prepare("DELETE FROM shader_log WHERE `file`=$file;", err)
	return this.stmtRecord != nil && this.stmtTouch != nil && this.stmtAll != nil &&
		this.stmtStale != nil && this.stmtRemove != nil
}

func (this *ShaderLog) Close() {
	if this.file_ == nil {
		return
	}
	// Statements from Prepare are cached by the connection and finalized
	// when it closes.
	this.file_.Close()
	this.file_ = nil
}

// / Insert or update the entry of a permutation.
func (this *ShaderLog) Record(stage ShaderStage, ident *ShaderIdentifier, failed bool, size int64, now int64, err *string) bool {
	stmt := this.stmtRecord
	stmt.Reset()
	stmt.ClearBindings()
	stmt.SetText("$file", ident.HashName()+kCacheFileExtension[stage])
	stmt.SetInt64("$stage", int64(stage))
	stmt.SetText("$identifier", ident.ShaderIdentifier)
	stmt.SetInt64("$sources", int64(len(ident.SourceFiles)))
	stmt.SetBool("$failed", failed)
	stmt.SetInt64("$size", size)
	stmt.SetInt64("$now", now)
	if _, err1 := stmt.Step(); err1 != nil {
		*err = err1.Error()
		return false
	}
	return true
}

func (this *ShaderLog) Touch(stage ShaderStage, ident *ShaderIdentifier, now int64) {
	stmt := this.stmtTouch
	stmt.Reset()
	stmt.ClearBindings()
	stmt.SetText("$file", ident.HashName()+kCacheFileExtension[stage])
	stmt.SetInt64("$now", now)
	stmt.Step()
}

func readShaderLogEntries(stmt *sqlite.Stmt, err *string) ([]ShaderLogEntry, bool) {
	var ret []ShaderLogEntry
	for {
		hasRow, err1 := stmt.Step()
		if err1 != nil {
			*err = err1.Error()
			return nil, false
		}
		if !hasRow {
			break
		}
		ret = append(ret, ShaderLogEntry{
			File:       stmt.ColumnText(0),
			Stage:      ShaderStage(stmt.ColumnInt64(1)),
			Identifier: stmt.ColumnText(2),
			Sources:    int(stmt.ColumnInt64(3)),
			Failed:     stmt.ColumnInt64(4) != 0,
			Size:       stmt.ColumnInt64(5),
			CreatedAt:  stmt.ColumnInt64(6),
			LastAccess: stmt.ColumnInt64(7),
		})
	}
	return ret, true
}

func (this *ShaderLog) Entries(err *string) ([]ShaderLogEntry, bool) {
	this.stmtAll.Reset()
	return readShaderLogEntries(this.stmtAll, err)
}

// / Entries not accessed since before (unix seconds).
func (this *ShaderLog) Stale(before int64, err *string) ([]ShaderLogEntry, bool) {
	this.stmtStale.Reset()
	this.stmtStale.ClearBindings()
	this.stmtStale.SetInt64("$before", before)
	return readShaderLogEntries(this.stmtStale, err)
}

func (this *ShaderLog) Remove(file string, err *string) bool {
	stmt := this.stmtRemove
	stmt.Reset()
	stmt.ClearBindings()
	stmt.SetText("$file", file)
	if _, err1 := stmt.Step(); err1 != nil {
		*err = err1.Error()
		return false
	}
	return true
}
