package term

import (
	"os"

	"golang.org/x/term"
)

func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func GetSize(f *os.File) (width, height int, err error) {
	return term.GetSize(int(f.Fd()))
}

// Width returns the width of the terminal attached to f, or 0 if f is not a terminal.
func Width(f *os.File) int {
	if !IsTerminal(f) {
		return 0
	}
	width, _, err := GetSize(f)
	if err != nil {
		return 0
	}
	return width
}
