package logx

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// ColorEnabled reports whether stdout is an interactive terminal and
// colour has not been disabled via NO_COLOR.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// ColorizeStatusWith renders the status code, wrapped in an ANSI colour
// when color is true: green 2xx, cyan 3xx, yellow 4xx, red otherwise.
func ColorizeStatusWith(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	switch {
	case status >= 200 && status < 300:
		return ansiGreen + s + ansiReset
	case status >= 300 && status < 400:
		return ansiCyan + s + ansiReset
	case status >= 400 && status < 500:
		return ansiYellow + s + ansiReset
	default:
		return ansiRed + s + ansiReset
	}
}
