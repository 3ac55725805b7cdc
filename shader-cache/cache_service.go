package main

import (
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	loadavg "github.com/mikoim/go-loadavg"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/expvarhandler"
	"surface-shader-go/model"
	shader_go "surface-shader-go/shader-go"
)

// Various counters - see https://pkg.go.dev/expvar for details.
var (
	// Counter for total number of fs calls
	fsCalls = expvar.NewInt("fsCalls")

	// Counters for various response status codes
	fsOKResponses          = expvar.NewInt("fsOKResponses")
	fsNotModifiedResponses = expvar.NewInt("fsNotModifiedResponses")
	fsNotFoundResponses    = expvar.NewInt("fsNotFoundResponses")
	fsOtherResponses       = expvar.NewInt("fsOtherResponses")

	// Total size in bytes for OK response bodies served.
	fsResponseBodyBytes = expvar.NewInt("fsResponseBodyBytes")

	uploadAccepted = expvar.NewInt("uploadAccepted")
	uploadExisting = expvar.NewInt("uploadExisting")
	uploadRejected = expvar.NewInt("uploadRejected")

	fsRootDir       string
	fsServer        *fasthttp.Server
	expiredDuration = 7 * 24 * time.Hour
)

func init() {
	expvar.Publish("loadavg", expvar.Func(func() any {
		avg, err := loadavg.Parse()
		if err != nil {
			return err.Error()
		}
		return []float64{avg.LoadAverage1, avg.LoadAverage5}
	}))
}

const kShaderFilesPrefix = "/shaders/"

// ParseShaderEntry reads the uploaded cache file and checks that it is
// stored under the name its own identifier hashes to.
func ParseShaderEntry(ctx *fasthttp.RequestCtx, data []byte) (*model.ShaderEntry, error) {
	name := string(ctx.FormValue("name"))
	var err string
	record, ok := shader_go.DecodeCacheRecord(data, &err)
	if !ok {
		return nil, errors.New(err)
	}
	if want := filepath.Base(shader_go.CacheFileName("", record.Stage, record.Identifier)); name != want {
		return nil, errors.New("cache file name '" + name + "' does not match its contents (" + want + ")")
	}
	script := ""
	if len(record.Identifier.SourceFiles) > 0 {
		script = record.Identifier.SourceFiles[0].Name
	}
	now := time.Now().Unix()
	entry := model.ShaderEntry{
		Name:            name,
		Identifier:      record.Identifier.ShaderIdentifier,
		Stage:           int(record.Stage),
		Script:          script,
		Sources:         len(record.Identifier.SourceFiles),
		Size:            int64(len(data)),
		Instance:        string(ctx.FormValue("instance")),
		CreatedAt:       now,
		LastAccess:      now,
		ExpiredDuration: int64(expiredDuration / time.Second),
	}
	return &entry, nil
}

func readFormFile(ctx *fasthttp.RequestCtx) ([]byte, error) {
	header, err := ctx.FormFile("file")
	if err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func HandleUpload(ctx *fasthttp.RequestCtx) {
	ctx.Response.Reset()
	data, err := readFormFile(ctx)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	}
	entry, err := ParseShaderEntry(ctx, data)
	if err != nil {
		uploadRejected.Add(1)
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	}
	exist, err := CheckEntryExist(entry.Name)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	if exist {
		uploadExisting.Add(1)
		ctx.Success("plain/text", []byte("already exists."))
		return
	}
	if err := os.WriteFile(filepath.Join(fsRootDir, entry.Name), data, 0o644); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	if err := SaveShaderEntry(entry); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	uploadAccepted.Add(1)
	ctx.Success("plain/text", []byte("success"))
}

// HandleQuery lists the published permutations of ?identifier=function::class.
func HandleQuery(ctx *fasthttp.RequestCtx) {
	ctx.Response.Reset()
	identifier := string(ctx.QueryArgs().Peek("identifier"))
	limit, err := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	if err != nil || limit <= 0 {
		limit = 100
	}
	entries, err := FindEntriesByIdentifier(identifier, limit)
	if errors.Is(err, os.ErrNotExist) {
		ctx.Error("no permutations of '"+identifier+"'", fasthttp.StatusNotFound)
		return
	}
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	buf, err := json.Marshal(entries)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.Success("application/json", buf)
}

func UpdateRecordLastAccess(ctx *fasthttp.RequestCtx) {
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		return
	}
	name := strings.TrimPrefix(string(ctx.Path()), kShaderFilesPrefix)
	if name == "" || strings.Contains(name, "/") {
		return
	}
	if err := UpdateFileAccess(name); err != nil {
		log.Println(err)
	}
}

func updateFSCounters(ctx *fasthttp.RequestCtx) {
	// Increment the number of fsHandler calls.
	fsCalls.Add(1)

	// Update other stats counters
	resp := &ctx.Response
	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		fsOKResponses.Add(1)
		fsResponseBodyBytes.Add(int64(resp.Header.ContentLength()))
	case fasthttp.StatusNotModified:
		fsNotModifiedResponses.Add(1)
	case fasthttp.StatusNotFound:
		fsNotFoundResponses.Add(1)
	default:
		fsOtherResponses.Add(1)
	}
}

func NewRequestHandler(rootDir string, compress bool) fasthttp.RequestHandler {
	fsRootDir = rootDir
	fs := &fasthttp.FS{
		Root:            rootDir,
		Compress:        compress,
		AcceptByteRange: true,
		PathRewrite:     fasthttp.NewPathSlashesStripper(1),
	}
	fsHandler := fs.NewRequestHandler()
	// /stats output may be filtered using regexps. For example:
	//
	//   * /stats?r=fs will show only stats (expvars) containing 'fs'
	//     in their names.
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/stats":
			expvarhandler.ExpvarHandler(ctx)
		case path == "/upload":
			HandleUpload(ctx)
		case path == "/query":
			HandleQuery(ctx)
		case strings.HasPrefix(path, kShaderFilesPrefix):
			fsHandler(ctx)
			updateFSCounters(ctx)
			UpdateRecordLastAccess(ctx)
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

func ServeShaders(addr, rootDir string, compress bool) {
	log.Printf("Starting HTTP server on %q", addr)
	fsServer = &fasthttp.Server{
		Handler:      NewRequestHandler(rootDir, compress),
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: 15 * time.Minute,
		Concurrency:  256 * 1024,
	}
	if err := fsServer.ListenAndServe(addr); err != nil {
		log.Fatalf("error in ListenAndServe: %v", err)
	}
}
