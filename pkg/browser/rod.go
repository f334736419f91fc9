package browser

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const connectedProbeTimeout = 3 * time.Second

type rodEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func (e *rodEngine) NewContext(identity Identity) (Context, error) {
	incognito, err := e.browser.Incognito()
	if err != nil {
		return nil, err
	}
	return &rodContext{browser: incognito, identity: identity}, nil
}

// Connected probes the devtools connection
func (e *rodEngine) Connected() bool {
	_, err := proto.BrowserGetVersion{}.Call(e.browser.Timeout(connectedProbeTimeout))
	return err == nil
}

func (e *rodEngine) Close() error {
	err := e.browser.Close()
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
	}
	return err
}

type rodContext struct {
	browser  *rod.Browser
	identity Identity
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, err
	}
	// detach from the creation context so the page outlives this call
	page = page.Context(context.Background())

	if c.identity.UserAgent != "" || c.identity.AcceptLanguage != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      c.identity.UserAgent,
			AcceptLanguage: c.identity.AcceptLanguage,
		})
		if err != nil {
			_ = page.Close()
			return nil, err
		}
	}
	if c.identity.ViewportWidth > 0 && c.identity.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.identity.ViewportWidth,
			Height:            c.identity.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = page.Close()
			return nil, err
		}
	}

	eventsCtx, cancel := context.WithCancel(context.Background())
	p := &rodPage{
		page:    page,
		browser: c.browser,
		cancel:  cancel,
	}
	go page.Context(eventsCtx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			p.dispatchRequest(e)
		},
		func(e *proto.NetworkResponseReceived) {
			p.recordResponse(e)
		},
	)()
	return p, nil
}

func (c *rodContext) Close() error {
	return c.browser.Close()
}

type rodPage struct {
	page    *rod.Page
	browser *rod.Browser
	cancel  context.CancelFunc

	mu       sync.Mutex
	handlers []func(Request)
	main     *Response
}

func (p *rodPage) dispatchRequest(e *proto.NetworkRequestWillBeSent) {
	req := Request{
		URL:          e.Request.URL,
		Method:       e.Request.Method,
		ResourceType: string(e.Type),
	}
	if parsed, err := url.Parse(e.Request.URL); err == nil {
		req.Host = strings.ToLower(parsed.Hostname())
	}
	p.mu.Lock()
	handlers := append([]func(Request){}, p.handlers...)
	p.mu.Unlock()
	for _, handler := range handlers {
		handler(req)
	}
}

func (p *rodPage) recordResponse(e *proto.NetworkResponseReceived) {
	if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != p.page.FrameID || e.Response == nil {
		return
	}
	headers := make(map[string]string, len(e.Response.Headers))
	for name, value := range e.Response.Headers {
		headers[normalizeHeaderName(name)] = headerValue(value)
	}
	p.mu.Lock()
	p.main = &Response{
		URL:        e.Response.URL,
		StatusCode: e.Response.Status,
		Protocol:   e.Response.Protocol,
		Headers:    headers,
	}
	p.mu.Unlock()
}

func headerValue(value gson.JSON) string {
	if s, ok := value.Val().(string); ok {
		return s
	}
	return value.String()
}

func normalizeHeaderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Navigate(ctx context.Context, target string) error {
	page := p.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := page.Navigate(target); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	wait()
	return ctx.Err()
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Cookies() ([]Cookie, error) {
	// storage level lookup covers third party cookies of the whole context
	res, err := proto.StorageGetCookies{BrowserContextID: p.browser.BrowserContextID}.Call(p.browser)
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Size:     c.Size,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			Session:  c.Session,
			SameSite: string(c.SameSite),
		}
		if !c.Session && c.Expires > 0 {
			cookie.Expires = c.Expires.Time()
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func (p *rodPage) MainResponse() *Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main
}

func (p *rodPage) Eval(js string) (gson.JSON, error) {
	res, err := p.page.Eval(js)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (p *rodPage) Click(selector string) (bool, error) {
	has, el, err := p.page.Has(selector)
	if err != nil || !has {
		return false, err
	}
	return true, clickElement(el)
}

func (p *rodPage) ClickText(selector, pattern string) (bool, error) {
	has, el, err := p.page.HasR(selector, pattern)
	if err != nil || !has {
		return false, err
	}
	return true, clickElement(el)
}

// clickElement uses a real mouse click and falls back to a DOM click for
// elements that are covered or outside the viewport.
func clickElement(el *rod.Element) error {
	if err := el.Timeout(2*time.Second).Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}
	_, err := el.Eval(`() => this.click()`)
	return err
}

func (p *rodPage) OnRequest(fn func(Request)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

func (p *rodPage) Close() error {
	p.cancel()
	return p.page.Close()
}
