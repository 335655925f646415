package term

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// CursorUp moves the cursor up n lines.
func CursorUp(w io.Writer, n int) {
	stdout := windows.Handle(os.Stdout.Fd())

	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(stdout, &info); err != nil {
		return
	}

	coords := info.CursorPosition
	coords.Y = max(coords.Y-int16(n), 0)
	windows.SetConsoleCursorPosition(stdout, coords)
}

func ClearLine(w io.Writer, width int) {
	stdout := windows.Handle(os.Stdout.Fd())

	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(stdout, &info); err != nil {
		return
	}

	coords := info.CursorPosition
	coords.X = 0
	if err := windows.SetConsoleCursorPosition(stdout, coords); err != nil {
		return
	}

	if width <= 0 {
		width = int(info.Size.X)
	}
	if _, err := windows.Write(stdout, bytes.Repeat([]byte{' '}, width)); err != nil {
		return
	}

	windows.SetConsoleCursorPosition(stdout, coords)
}
