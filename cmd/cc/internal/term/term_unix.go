//go:build !windows

package term

import (
	"fmt"
	"io"
)

// CursorUp moves the cursor up n lines.
func CursorUp(w io.Writer, n int) {
	if n > 0 {
		fmt.Fprintf(w, "\x1b[%dA", n)
	}
}

func ClearLine(w io.Writer, _ int) {
	fmt.Fprint(w, "\r\x1b[K")
}
