package main

import (
	"context"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar is a serializable cookie jar for scripted HTTP requests.
//
// The embedded cookiejar does the real work; Kookies just remembers
// what we've been given so the jar survives a trip through JSON (a
// store's persisted state, say).
type Jar struct {
	*cookiejar.Jar
	Kookies []*http.Cookie `json:"cookies"`
}

func NewJar() (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{Jar: jar}, nil
}

func (j *Jar) AddCookies(cs []*http.Cookie) {
	if j.Kookies == nil {
		j.Kookies = make([]*http.Cookie, 0, 2*len(cs))
	}
	j.Kookies = append(j.Kookies, cs...)
}

// HTTPRequest is the "request" part of an "http" action's payload.
//
// The whole struct round-trips through JSON, so a scripted action can
// build one as a plain object.
type HTTPRequest struct {
	Id                string      `json:"id,omitempty"`
	Method            string      `json:"method,omitempty"`
	URL               string      `json:"url"`
	Body              string      `json:"body,omitempty"`
	Headers           http.Header `json:"headers,omitempty"`
	ResponseTimeoutMS int         `json:"timeout,omitempty"`
	CookieJar         *Jar        `json:"jar,omitempty"`

	Debug bool `json:"debug,omitempty"`

	// TestResponse, if given, is handed to the handler instead of
	// anything from the network.
	TestResponse *HTTPResponse `json:"-"`
}

// HTTPResponse is what an "http" action commits (as a map) to its
// store's mutation.
type HTTPResponse struct {
	From        string       `json:"from,omitempty"`
	StatusCode  int          `json:"statusCode"`
	Status      string       `json:"status"`
	Error       error        `json:"error,omitempty"`
	Headers     http.Header  `json:"headers,omitempty"`
	Body        string       `json:"body,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Request     *HTTPRequest `json:"request,omitempty"`

	// Parsed could be the Body parsed as (say) JSON.  This code
	// never writes this field; a handler might.
	Parsed interface{} `json:"parsed,omitempty"`
}

func (r *HTTPRequest) logf(format string, args ...interface{}) {
	if r.Debug {
		log.Printf(format, args...)
	}
}

// Do performs the request synchronously and calls the handler with
// the result.
//
// Network and read errors don't fail the call; they ride along in the
// HTTPResponse's Error so a store hears about them the same way it
// hears about a 500.
func (r *HTTPRequest) Do(ctx context.Context, handler func(context.Context, *HTTPResponse) error) error {
	if r.TestResponse != nil {
		r.TestResponse.Request = r
		return handler(ctx, r.TestResponse)
	}

	if 0 < r.ResponseTimeoutMS {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.ResponseTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	method := r.Method
	if method == "" {
		method = "GET"
	}

	req, err := http.NewRequest(method, r.URL, strings.NewReader(r.Body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	for name, vals := range r.Headers {
		for _, val := range vals {
			req.Header.Add(name, val)
		}
	}

	// http.Request doesn't itself support CookieJars; http.Client
	// does.  But an http.Client caches TCP connections, so we
	// shouldn't make one per request, and we really don't want to
	// manage a cache of http.Clients.  So we work the jar by hand.
	// Yuck.  Scary, too.
	//
	// ToDo: Make more correct and audit and test and audit and
	// ...

	if r.CookieJar != nil {
		for i, cookie := range r.CookieJar.Cookies(req.URL) {
			r.logf("HTTPRequest.Do adding cookie %d: %#v", i, cookie)
			req.AddCookie(cookie)
		}
	}

	result := &HTTPResponse{
		Request: r,
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.logf("HTTPRequest.Do error %s", err)
		result.Error = err
		return handler(ctx, result)
	}

	result.Status = resp.Status
	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.ContentType = resp.Header.Get("Content-Type")

	bs, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.logf("HTTPRequest.Do read error %s", err)
		result.Error = err
		return handler(ctx, result)
	}
	result.Body = string(bs)

	if r.CookieJar != nil {
		r.logf("HTTPRequest.Do updating cookies")
		r.CookieJar.SetCookies(req.URL, resp.Cookies())
		r.CookieJar.AddCookies(resp.Cookies())
	}

	r.logf("HTTPRequest.Do response %s", JS(result))

	return handler(ctx, result)
}
