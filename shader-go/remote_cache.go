package shader_go

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const kRemoteTimeout = 30 * time.Second

// / Client of the shared shader cache server. Cache files are fetched
// / with GET /shaders/<file> and published with a multipart POST to
// / /upload.
type RemoteCache struct {
	base_    string
	client_  *fasthttp.Client
	timeout_ time.Duration
}

func NewRemoteCache(address string) *RemoteCache {
	return NewRemoteCacheWithClient(address, &fasthttp.Client{})
}

func NewRemoteCacheWithClient(address string, client *fasthttp.Client) *RemoteCache {
	ret := RemoteCache{}
	ret.base_ = strings.TrimRight(address, "/")
	if !strings.Contains(ret.base_, "://") {
		ret.base_ = "http://" + ret.base_
	}
	ret.client_ = client
	ret.timeout_ = kRemoteTimeout
	return &ret
}

func (this *RemoteCache) Address() string { return this.base_ }

// / Download a cache file. NotFound is a plain miss.
func (this *RemoteCache) Fetch(name string, contents *[]byte, err *string) StatusEnum {
	defer METRIC_RECORD("remote fetch")()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(this.base_ + "/shaders/" + name)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err1 := this.client_.DoTimeout(req, resp, this.timeout_); err1 != nil {
		*err = err1.Error()
		return OtherError
	}
	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		*contents = append([]byte{}, resp.Body()...)
		return Okay
	case fasthttp.StatusNotFound:
		return NotFound
	}
	*err = fmt.Sprintf("unexpected status %d", resp.StatusCode())
	return OtherError
}

// / Publish a cache file under name.
func (this *RemoteCache) Store(name string, data []byte, err *string) bool {
	defer METRIC_RECORD("remote store")()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	host, _ := os.Hostname()
	for _, field := range [][2]string{{"name", name}, {"instance", host}} {
		if err1 := w.WriteField(field[0], field[1]); err1 != nil {
			*err = err1.Error()
			return false
		}
	}
	part, err1 := w.CreateFormFile("file", name)
	if err1 == nil {
		_, err1 = part.Write(data)
	}
	if err1 == nil {
		err1 = w.Close()
	}
	if err1 != nil {
		*err = err1.Error()
		return false
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(this.base_ + "/upload")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(w.FormDataContentType())
	req.SetBody(body.Bytes())
	if err1 := this.client_.DoTimeout(req, resp, this.timeout_); err1 != nil {
		*err = err1.Error()
		return false
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		*err = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode(), resp.Body())
		return false
	}
	return true
}
