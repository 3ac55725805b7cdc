package shader_go

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrtr/gocontainer/queue/priorityqueue"
	"github.com/go-co-op/gocron/v2"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/tevino/abool/v2"
)

// / Compiles assembled native source into bytecode.
type Compiler interface {
	Compile(stage ShaderStage, source, entry string, err *string) ([]byte, bool)
}

// / Keeps the source text as the bytecode. Used when no native compiler is
// / attached; it still rejects sources without the entry point or with
// / unbalanced braces.
type PassthroughCompiler struct{}

func (PassthroughCompiler) Compile(stage ShaderStage, source, entry string, err *string) ([]byte, bool) {
	if !strings.Contains(source, " "+entry+"(") {
		*err = fmt.Sprintf("entry point '%s' not found", entry)
		return nil, false
	}
	if line, ok := checkBraces(source); !ok {
		*err = fmt.Sprintf("(%d): unbalanced braces", line)
		return nil, false
	}
	return []byte(source), true
}

// / A compiled shader owned by the resource manager. A handle stays
// / resident while referenced and for its destroy delay after the last
// / reference is dropped or the last lookup hit it.
type ShaderHandle struct {
	Stage      ShaderStage
	Identifier *ShaderIdentifier
	Entry      string
	Bytecode   []byte

	manager_  *ResourceManager
	refs_     int
	delay_    time.Duration
	expires_  time.Time
	resident_ bool
}

// / Restart the idle eviction window of the handle.
func (this *ShaderHandle) SetDestroyDelay(delay time.Duration) {
	this.manager_.mu_.Lock()
	defer this.manager_.mu_.Unlock()
	this.delay_ = delay
	this.manager_.scheduleLocked(this)
}

func (this *ShaderHandle) AddRef() {
	this.manager_.mu_.Lock()
	defer this.manager_.mu_.Unlock()
	this.refs_++
}

// / Drop a reference. The destroy delay starts over once the last
// / reference is gone.
func (this *ShaderHandle) Release() {
	this.manager_.mu_.Lock()
	defer this.manager_.mu_.Unlock()
	if this.refs_ > 0 {
		this.refs_--
	}
	if this.refs_ == 0 {
		this.manager_.scheduleLocked(this)
	}
}

func (this *ShaderHandle) RefCount() int {
	this.manager_.mu_.Lock()
	defer this.manager_.mu_.Unlock()
	return this.refs_
}

func (this *ShaderHandle) IsResident() bool {
	this.manager_.mu_.Lock()
	defer this.manager_.mu_.Unlock()
	return this.resident_
}

// Snapshot of a handle's expiry when it was queued. Entries whose handle
// was rescheduled or evicted since are skipped by the sweep.
type expiryEntry struct {
	handle  *ShaderHandle
	expires time.Time
}

type expiryCmp struct{}

func (expiryCmp) Compare(v1, v2 interface{}) (int, error) {
	return v1.(*expiryEntry).expires.Compare(v2.(*expiryEntry).expires), nil
}

type ResourceStats struct {
	Hits       int
	DiskHits   int
	RemoteHits int
	Compiles   int
	Failures   int
	Evictions  int
}

// / Owns the compiled shaders shared by every surface shader: the resident
// / set, the cache directory, the optional shared cache server and the
// / idle eviction.
type ResourceManager struct {
	config_   *Config
	disk_     DiskInterface
	compiler_ Compiler
	log_      Logger
	remote_   *RemoteCache
	index_    *ShaderLog

	mu_ sync.Mutex
	/// Per stage: fnv1a of the identifier key -> handles with that key hash.
	resident_ [2]map[uint64][]*ShaderHandle
	expiry_   priorityqueue.Interface
	stats_    ResourceStats
	now_      func() time.Time

	sweeping_  *abool.AtomicBool
	scheduler_ gocron.Scheduler
}

func NewResourceManager(config *Config, disk DiskInterface, compiler Compiler, log Logger) *ResourceManager {
	ret := ResourceManager{}
	ret.config_ = config
	ret.disk_ = disk
	ret.compiler_ = compiler
	ret.log_ = log
	ret.resident_[VERTEX_SHADER] = map[uint64][]*ShaderHandle{}
	ret.resident_[PIXEL_SHADER] = map[uint64][]*ShaderHandle{}
	ret.expiry_ = priorityqueue.New().WithComparator(&expiryCmp{})
	ret.now_ = time.Now
	ret.sweeping_ = abool.New()
	return &ret
}

func (this *ResourceManager) SetRemote(remote *RemoteCache) { this.remote_ = remote }
func (this *ResourceManager) SetIndex(index *ShaderLog)     { this.index_ = index }
func (this *ResourceManager) SetClock(now func() time.Time) { this.now_ = now }

func (this *ResourceManager) Stats() ResourceStats {
	this.mu_.Lock()
	defer this.mu_.Unlock()
	return this.stats_
}

func (this *ResourceManager) ResidentCount() int {
	this.mu_.Lock()
	defer this.mu_.Unlock()
	n := 0
	for _, m := range this.resident_ {
		for _, bucket := range m {
			n += len(bucket)
		}
	}
	return n
}

func (this *ResourceManager) scheduleLocked(h *ShaderHandle) {
	h.expires_ = this.now_().Add(h.delay_)
	if h.resident_ {
		this.expiry_.Add(&expiryEntry{handle: h, expires: h.expires_})
	}
}

func (this *ResourceManager) findLocked(stage ShaderStage, ident *ShaderIdentifier) *ShaderHandle {
	for _, h := range this.resident_[stage][fnv1a.HashBytes64(ident.Key())] {
		if h.Identifier.Compare(ident) == 0 {
			return h
		}
	}
	return nil
}

func (this *ResourceManager) addLocked(h *ShaderHandle) {
	key := fnv1a.HashBytes64(h.Identifier.Key())
	this.resident_[h.Stage][key] = append(this.resident_[h.Stage][key], h)
	h.resident_ = true
	h.refs_ = 1
	this.scheduleLocked(h)
}

func (this *ResourceManager) removeLocked(h *ShaderHandle) {
	key := fnv1a.HashBytes64(h.Identifier.Key())
	bucket := this.resident_[h.Stage][key]
	for i, other := range bucket {
		if other == h {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(this.resident_[h.Stage], key)
	} else {
		this.resident_[h.Stage][key] = bucket
	}
	h.resident_ = false
}

func (this *ResourceManager) newHandle(stage ShaderStage, ident *ShaderIdentifier, entry string, code []byte) *ShaderHandle {
	ret := ShaderHandle{}
	ret.Stage = stage
	ret.Identifier = ident
	ret.Entry = entry
	ret.Bytecode = code
	ret.manager_ = this
	ret.delay_ = this.config_.DestroyDelay
	return &ret
}

// Decode a cache file and check that it was produced from the sources
// ident refers to.
func (this *ResourceManager) readRecord(stage ShaderStage, ident *ShaderIdentifier, data []byte, origin string) (*CacheRecord, bool) {
	var err string
	record, ok := DecodeCacheRecord(data, &err)
	if !ok {
		this.log_.Write(SEVERITY_WARNING, "Ignoring shader cache file '%s'. %s", origin, err)
		return nil, false
	}
	if record.Stage != stage || record.Identifier.Compare(ident) != 0 {
		// Stale: the script or one of its includes changed since.
		return nil, false
	}
	return record, true
}

// / Look for a compiled permutation: resident handles first, then the
// / cache directory, then the shared cache server. Returns nil on a miss.
// / A hit holds a reference and restarts the destroy delay.
func (this *ResourceManager) LoadShader(stage ShaderStage, ident *ShaderIdentifier) *ShaderHandle {
	defer METRIC_RECORD("shader lookup")()
	if h := this.FindResident(stage, ident); h != nil {
		return h
	}
	return this.loadCached(stage, ident)
}

// / Resident handles only; never touches the cache directory or the
// / shared cache server.
func (this *ResourceManager) FindResident(stage ShaderStage, ident *ShaderIdentifier) *ShaderHandle {
	this.mu_.Lock()
	h := this.findLocked(stage, ident)
	if h == nil {
		this.mu_.Unlock()
		return nil
	}
	h.refs_++
	this.scheduleLocked(h)
	this.stats_.Hits++
	this.mu_.Unlock()
	if this.index_ != nil {
		this.index_.Touch(stage, ident, this.now_().Unix())
	}
	return h
}

// Cache directory, then shared cache server.
func (this *ResourceManager) loadCached(stage ShaderStage, ident *ShaderIdentifier) *ShaderHandle {
	path := CacheFileName(this.config_.CacheDir, stage, ident)
	var contents, err string
	var record *CacheRecord
	fromRemote := false
	if this.disk_.ReadFile(path, &contents, &err) == Okay {
		record, _ = this.readRecord(stage, ident, []byte(contents), path)
	}
	if record == nil && this.remote_ != nil {
		var data []byte
		name := ident.HashName() + kCacheFileExtension[stage]
		switch this.remote_.Fetch(name, &data, &err) {
		case Okay:
			if record, _ = this.readRecord(stage, ident, data, this.remote_.Address()+"/shaders/"+name); record != nil {
				fromRemote = true
				this.writeCacheFile(path, data)
			}
		case OtherError:
			this.log_.Write(SEVERITY_WARNING, "Shared shader cache '%s' unavailable. %s", this.remote_.Address(), err)
		}
	}
	if record == nil {
		return nil
	}

	// The cached identifier carries the input signature hash.
	h := this.newHandle(stage, record.Identifier, record.Entry, record.Bytecode)
	this.mu_.Lock()
	defer this.mu_.Unlock()
	if other := this.findLocked(stage, ident); other != nil {
		other.refs_++
		this.scheduleLocked(other)
		return other
	}
	this.addLocked(h)
	if fromRemote {
		this.stats_.RemoteHits++
	} else {
		this.stats_.DiskHits++
	}
	return h
}

func (this *ResourceManager) LoadVertexShader(ident *ShaderIdentifier) *ShaderHandle {
	return this.LoadShader(VERTEX_SHADER, ident)
}

func (this *ResourceManager) LoadPixelShader(ident *ShaderIdentifier) *ShaderHandle {
	return this.LoadShader(PIXEL_SHADER, ident)
}

func (this *ResourceManager) writeCacheFile(path string, data []byte) bool {
	var err string
	if !this.disk_.MakeDirs(path, &err) {
		this.log_.Write(SEVERITY_WARNING, "Unable to create shader cache directory for '%s'. %s", path, err)
		return false
	}
	return this.disk_.WriteFile(path, string(data))
}

// / Compile source and make the result resident. The compiled permutation
// / is written to the cache directory, recorded in the index and published
// / to the shared cache when those are configured. Returns nil if
// / compilation fails.
func (this *ResourceManager) CreateShader(stage ShaderStage, ident *ShaderIdentifier, source, entry string) *ShaderHandle {
	defer METRIC_RECORD("shader compile")()
	var err string
	code, ok := this.compiler_.Compile(stage, source, entry, &err)
	if !ok {
		this.log_.Write(SEVERITY_ERROR, "Failed to compile %s shader '%s'. %s", stage, ident.ShaderIdentifier, err)
		this.RecordFailure(stage, ident)
		return nil
	}

	h := this.newHandle(stage, ident.Clone(), entry, code)
	this.mu_.Lock()
	if other := this.findLocked(stage, ident); other != nil {
		other.refs_++
		this.scheduleLocked(other)
		this.mu_.Unlock()
		return other
	}
	this.addLocked(h)
	this.stats_.Compiles++
	this.mu_.Unlock()

	if this.config_.Sandbox {
		return h
	}
	record := CacheRecord{Stage: stage, Identifier: h.Identifier, Entry: entry, Bytecode: code}
	data := record.Encode()
	name := ident.HashName() + kCacheFileExtension[stage]
	this.writeCacheFile(spliceSlash(this.config_.CacheDir, name), data)
	if this.index_ != nil && !this.index_.Record(stage, h.Identifier, false, int64(len(data)), this.now_().Unix(), &err) {
		this.log_.Write(SEVERITY_WARNING, "Unable to record shader '%s' in the shader log. %s", name, err)
	}
	if this.remote_ != nil && !this.remote_.Store(name, data, &err) {
		this.log_.Write(SEVERITY_WARNING, "Unable to publish shader '%s' to '%s'. %s", name, this.remote_.Address(), err)
	}
	return h
}

func (this *ResourceManager) CreateVertexShader(ident *ShaderIdentifier, source, entry string) *ShaderHandle {
	return this.CreateShader(VERTEX_SHADER, ident, source, entry)
}

func (this *ResourceManager) CreatePixelShader(ident *ShaderIdentifier, source, entry string) *ShaderHandle {
	return this.CreateShader(PIXEL_SHADER, ident, source, entry)
}

// / Count a failed permutation and note it in the index.
func (this *ResourceManager) RecordFailure(stage ShaderStage, ident *ShaderIdentifier) {
	this.mu_.Lock()
	this.stats_.Failures++
	this.mu_.Unlock()
	if this.index_ == nil {
		return
	}
	var err string
	if !this.index_.Record(stage, ident, true, 0, this.now_().Unix(), &err) {
		this.log_.Write(SEVERITY_WARNING, "Unable to record failed shader '%s' in the shader log. %s", ident.ShaderIdentifier, err)
	}
}

// / Evict every unreferenced handle whose destroy delay elapsed, earliest
// / expiry first. Returns the number of evicted handles.
func (this *ResourceManager) Sweep() int {
	if !this.sweeping_.SetToIf(false, true) {
		return 0
	}
	defer this.sweeping_.UnSet()
	defer METRIC_RECORD("shader sweep")()

	this.mu_.Lock()
	defer this.mu_.Unlock()
	now := this.now_()
	evicted := 0
	for !this.expiry_.IsEmpty() {
		e := this.expiry_.Peek().(*expiryEntry)
		if e.expires.After(now) {
			break
		}
		this.expiry_.Poll()
		h := e.handle
		if !h.resident_ || !h.expires_.Equal(e.expires) {
			continue
		}
		if h.refs_ > 0 {
			// Release queues it again.
			continue
		}
		this.removeLocked(h)
		evicted++
	}
	this.stats_.Evictions += evicted
	return evicted
}

// / Run Sweep every interval on a background scheduler.
func (this *ResourceManager) StartSweeper(interval time.Duration) error {
	if this.scheduler_ != nil {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() { this.Sweep() })); err != nil {
		s.Shutdown()
		return err
	}
	s.Start()
	this.scheduler_ = s
	return nil
}

func (this *ResourceManager) Shutdown() {
	if this.scheduler_ == nil {
		return
	}
	if err := this.scheduler_.Shutdown(); err != nil {
		this.log_.Write(SEVERITY_WARNING, "Shader sweeper shutdown: %v", err)
	}
	this.scheduler_ = nil
}
