package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the width of stdout, or 80 if it is not a terminal
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// ShowProgress reports whether progress bars should be drawn: stderr is
// interactive and output has not been silenced.
func ShowProgress() bool {
	return !IsQuiet() && IsTerminal(os.Stderr.Fd())
}

// Elide shortens s to fit in width columns, marking the cut with "...".
// Widths below 4 return s unchanged.
func Elide(s string, width int) string {
	if width < 4 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
