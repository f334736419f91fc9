package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func GetBrowserLauncher() *launcher.Launcher {
	options := launcher.New().
		Headless(viper.GetBool("browser.headless")).
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	if viper.GetBool("browser.no_sandbox") {
		options = options.NoSandbox(true)
	}
	if bin := viper.GetString("browser.bin"); bin != "" {
		options = options.Bin(bin)
	}
	if proxy := viper.GetString("navigation.proxy"); proxy != "" {
		options = options.Proxy(proxy)
	}
	return options
}

// LaunchRod starts a chromium process and connects to it. The launch is
// abandoned when ctx ends; a browser that comes up afterwards is closed.
func LaunchRod(ctx context.Context) (Engine, error) {
	type result struct {
		engine *rodEngine
		err    error
	}

	resultChan := make(chan result, 1)

	go func() {
		l := GetBrowserLauncher()
		controlURL, err := l.Launch()
		if err != nil {
			resultChan <- result{err: err}
			return
		}
		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			resultChan <- result{err: err}
			return
		}
		resultChan <- result{engine: &rodEngine{browser: b, launcher: l}}
	}()

	select {
	case res := <-resultChan:
		return res.engine, res.err
	case <-ctx.Done():
		go func() {
			if res := <-resultChan; res.engine != nil {
				log.Debug().Msg("Closing browser that finished launching after timeout")
				_ = res.engine.Close()
			}
		}()
		return nil, fmt.Errorf("timeout reached while trying to launch a browser: %w", ctx.Err())
	}
}
