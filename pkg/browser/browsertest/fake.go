// Package browsertest provides in-memory browser doubles for tests.
package browsertest

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/ysmood/gson"
)

// Page is a scripted browser.Page. Requests listed in Requests are emitted
// during Navigate, those in RequestsAfterClick when a click succeeds.
type Page struct {
	mu sync.Mutex

	CurrentURL         string
	Content            string
	CookieJar          []browser.Cookie
	CookiesAfterClick  []browser.Cookie
	Response           *browser.Response
	Requests           []browser.Request
	RequestsAfterClick []browser.Request
	Clickable          map[string]bool
	EvalResults        map[string]gson.JSON
	NavigateErr        error
	NavigateDelay      time.Duration
	CookiesErr         error

	clicked  bool
	closed   bool
	handlers []func(browser.Request)
	Clicks   []string
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.NavigateDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.NavigateDelay):
		}
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	p.emit(p.Requests)
	return nil
}

func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Content, nil
}

func (p *Page) Cookies() ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CookiesErr != nil {
		return nil, p.CookiesErr
	}
	cookies := append([]browser.Cookie{}, p.CookieJar...)
	if p.clicked {
		cookies = append(cookies, p.CookiesAfterClick...)
	}
	return cookies, nil
}

func (p *Page) MainResponse() *browser.Response {
	return p.Response
}

func (p *Page) Eval(js string) (gson.JSON, error) {
	if v, ok := p.EvalResults[js]; ok {
		return v, nil
	}
	return gson.New(nil), nil
}

func (p *Page) Click(selector string) (bool, error) {
	if !p.Clickable[selector] {
		return false, nil
	}
	p.click(selector)
	return true, nil
}

func (p *Page) ClickText(selector, pattern string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	for candidate := range p.Clickable {
		if re.MatchString(candidate) {
			p.click(selector + "|" + candidate)
			return true, nil
		}
	}
	return false, nil
}

func (p *Page) click(name string) {
	p.mu.Lock()
	p.clicked = true
	p.Clicks = append(p.Clicks, name)
	p.mu.Unlock()
	p.emit(p.RequestsAfterClick)
}

func (p *Page) emit(requests []browser.Request) {
	p.mu.Lock()
	handlers := append([]func(browser.Request){}, p.handlers...)
	p.mu.Unlock()
	for _, req := range requests {
		for _, h := range handlers {
			h(req)
		}
	}
}

func (p *Page) OnRequest(fn func(browser.Request)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Context hands out pages from a factory and counts closes
type Context struct {
	NewPageFn  func() (browser.Page, error)
	CloseErr   error
	closeCount atomic.Int32
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if c.NewPageFn == nil {
		return &Page{}, nil
	}
	return c.NewPageFn()
}

func (c *Context) Close() error {
	c.closeCount.Add(1)
	return c.CloseErr
}

// CloseCount returns how many times Close was called
func (c *Context) CloseCount() int {
	return int(c.closeCount.Load())
}

// Engine is a fake browser.Engine
type Engine struct {
	ID           int
	NewContextFn func(identity browser.Identity) (browser.Context, error)

	disconnected atomic.Bool
	closed       atomic.Bool
	mu           sync.Mutex
	contexts     []browser.Context
	identities   []browser.Identity
}

func (e *Engine) NewContext(identity browser.Identity) (browser.Context, error) {
	if e.closed.Load() {
		return nil, errors.New("browser has been closed")
	}
	var (
		c   browser.Context
		err error
	)
	if e.NewContextFn != nil {
		c, err = e.NewContextFn(identity)
	} else {
		c = &Context{}
	}
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.contexts = append(e.contexts, c)
	e.identities = append(e.identities, identity)
	e.mu.Unlock()
	return c, nil
}

func (e *Engine) Connected() bool {
	return !e.disconnected.Load() && !e.closed.Load()
}

func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// Disconnect simulates the browser process dying
func (e *Engine) Disconnect() {
	e.disconnected.Store(true)
}

// Closed reports whether Close was called
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Identities returns the identities contexts were created with
func (e *Engine) Identities() []browser.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]browser.Identity{}, e.identities...)
}

// Launcher counts launches and builds fake engines
type Launcher struct {
	Delay   time.Duration
	Err     error
	Setup   func(*Engine)
	mu      sync.Mutex
	engines []*Engine
	count   atomic.Int32
}

// Launch satisfies browser.LaunchFunc
func (l *Launcher) Launch(ctx context.Context) (browser.Engine, error) {
	n := l.count.Add(1)
	if l.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Delay):
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	engine := &Engine{ID: int(n)}
	if l.Setup != nil {
		l.Setup(engine)
	}
	l.mu.Lock()
	l.engines = append(l.engines, engine)
	l.mu.Unlock()
	return engine, nil
}

// Count returns the number of launch attempts
func (l *Launcher) Count() int {
	return int(l.count.Load())
}

// Engines returns the engines launched so far
func (l *Launcher) Engines() []*Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Engine{}, l.engines...)
}
