// Package popup drives a single authorization attempt in a separate browsing context and waits
// for the redirect callback to report back.
package popup

import (
	"errors"
	"fmt"
)

const (
	PopupWidth  = 500
	PopupHeight = 650
)

// ErrBlocked is returned by an Opener that was refused a window.
var ErrBlocked = errors.New("popup: window could not be opened")

// Features describes the popup geometry.
type Features struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// CenteredFeatures returns the fixed popup size centered on a screen of the given size.
func CenteredFeatures(screenWidth, screenHeight int) Features {
	return Features{
		Width:  PopupWidth,
		Height: PopupHeight,
		Left:   max(0, (screenWidth-PopupWidth)/2),
		Top:    max(0, (screenHeight-PopupHeight)/2),
	}
}

func (f Features) String() string {
	return fmt.Sprintf("width=%d,height=%d,left=%d,top=%d", f.Width, f.Height, f.Left, f.Top)
}

// Window is an opened popup.
type Window interface {
	// Closed reports whether the user closed the window. An error means closure cannot be
	// observed, for example once the window navigated to a foreign origin.
	Closed() (bool, error)
	Close() error
}

// Opener opens a popup at url. A nil Window with a nil error is treated as blocked.
type Opener interface {
	Open(url string, features Features) (Window, error)
}

// Navigator moves the current browsing context to url (redirect flow).
type Navigator interface {
	Navigate(url string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string, features Features) (Window, error)

func (f OpenerFunc) Open(url string, features Features) (Window, error) { return f(url, features) }

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(url string) error

func (f NavigatorFunc) Navigate(url string) error { return f(url) }
