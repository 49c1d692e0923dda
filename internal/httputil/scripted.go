package httputil

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Reply is one canned answer of a ScriptedClient. A non-nil Err is returned
// as a transport error.
type Reply struct {
	Status int
	Body   string
	Err    error
}

// Call is a request seen by a ScriptedClient.
type Call struct {
	Method string
	URL    string
	Body   []byte
}

// ScriptedClient is an HTTPClient that answers from a queue of replies and
// records every call. Once the queue is empty it answers with Handler when
// set, and with an empty 200 otherwise.
type ScriptedClient struct {
	Handler http.HandlerFunc

	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewScriptedClient returns a client that answers with replies in order.
func NewScriptedClient(replies ...Reply) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// Enqueue appends replies.
func (c *ScriptedClient) Enqueue(replies ...Reply) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
	return c
}

// Do implements HTTPClient.
func (c *ScriptedClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{Method: req.Method, URL: req.URL.String(), Body: body})
	var next *Reply
	if len(c.replies) > 0 {
		next = &c.replies[0]
		c.replies = c.replies[1:]
	}
	handler := c.Handler
	c.mu.Unlock()

	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	switch {
	case next != nil && next.Err != nil:
		return nil, next.Err
	case next != nil:
		return &http.Response{
			StatusCode: next.Status,
			Body:       io.NopCloser(strings.NewReader(next.Body)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	case handler != nil:
		rec := newRecorder()
		handler(rec, req)
		return rec.result(req), nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Pending returns the number of queued replies not yet used.
func (c *ScriptedClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replies)
}

type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder { return &recorder{header: make(http.Header)} }

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) result(req *http.Request) *http.Response {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewReader(r.body.Bytes())),
		Header:     r.header,
		Request:    req,
	}
}
