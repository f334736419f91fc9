// Package browser owns the headless browser used by scans. A Session keeps at
// most one live engine, relaunches it when it dies, and hands out isolated
// contexts per scan.
package browser

import (
	"context"
	"time"

	"github.com/ysmood/gson"
)

// Identity is the fixed browsing identity applied to every page of a context
type Identity struct {
	UserAgent      string
	AcceptLanguage string
	ViewportWidth  int
	ViewportHeight int
}

// Request is a network request observed on a page. ThirdParty is filled in
// by the scan observer before the request reaches the analyzers.
type Request struct {
	URL          string
	Host         string
	Method       string
	ResourceType string
	ThirdParty   bool
}

// Response describes the main document response of a page
type Response struct {
	URL        string
	StatusCode int
	Protocol   string
	Headers    map[string]string
}

// Header returns a response header value, case insensitive
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	return r.Headers[normalizeHeaderName(name)]
}

// Cookie mirrors the cookie attributes exposed by the devtools protocol
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Size     int
	HTTPOnly bool
	Secure   bool
	Session  bool
	SameSite string
}

// Page is a single browser tab
type Page interface {
	URL() string
	// Navigate loads url and waits for the network to go idle. The wait is
	// bounded by ctx; a deadline surfaces as context.DeadlineExceeded.
	Navigate(ctx context.Context, url string) error
	HTML() (string, error)
	Cookies() ([]Cookie, error)
	MainResponse() *Response
	Eval(js string) (gson.JSON, error)
	// Click clicks the first element matching selector, reporting whether one existed
	Click(selector string) (bool, error)
	// ClickText clicks the first element matching selector whose text matches the regex
	ClickText(selector, pattern string) (bool, error)
	// OnRequest registers fn for every request the page issues from now on
	OnRequest(fn func(Request))
	Close() error
}

// Context is an isolated browsing context (own cookies and storage)
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Engine is a running browser process
type Engine interface {
	NewContext(identity Identity) (Context, error)
	Connected() bool
	Close() error
}

// LaunchFunc starts a new engine
type LaunchFunc func(ctx context.Context) (Engine, error)
