package popup

import (
	"errors"

	"github.com/cli/browser"
)

// ErrClosureUnobservable is what windows in the system browser report from Closed.
var ErrClosureUnobservable = errors.New("popup: window closure cannot be observed")

// BrowserOpener opens authorization URLs in the system browser.
type BrowserOpener struct{}

var _ Opener = BrowserOpener{}

func (BrowserOpener) Open(url string, _ Features) (Window, error) {
	if err := browser.OpenURL(url); err != nil {
		return nil, errors.Join(ErrBlocked, err)
	}
	return browserWindow{}, nil
}

// browserWindow is a tab in a browser this process does not control.
type browserWindow struct{}

func (browserWindow) Closed() (bool, error) { return false, ErrClosureUnobservable }

func (browserWindow) Close() error { return nil }

// BrowserNavigator hands redirect flow URLs to the system browser.
type BrowserNavigator struct{}

var _ Navigator = BrowserNavigator{}

func (BrowserNavigator) Navigate(url string) error {
	return browser.OpenURL(url)
}
