package server

import "net/http"

// ANSI escapes used by the DEV request log.
const (
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiReset  = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:     ansiGreen,
	http.MethodPost:    ansiBlue,
	http.MethodOptions: ansiCyan,
}

func statusColour(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return ansiRed
	case status >= http.StatusBadRequest:
		return ansiYellow
	case status >= http.StatusMultipleChoices:
		return ansiCyan
	}
	return ansiGreen
}
