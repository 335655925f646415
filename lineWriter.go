package cc

import (
	"bytes"
	"strings"
)

// lineWriter splits a command's output into lines and reports each as a Print event.
type lineWriter struct {
	target string
	events Events

	line strings.Builder
}

func newLineWriter(target string, events Events) *lineWriter {
	return &lineWriter{target: target, events: events}
}

func (l *lineWriter) Write(b []byte) (int, error) {
	w := 0
	for len(b) > 0 {
		newline := bytes.IndexByte(b, '\n')
		if newline == -1 {
			l.line.Write(b)
			w += len(b)
			break
		}
		if l.line.Len() == 0 {
			l.events.Print(l.target, string(bytes.TrimSuffix(b[:newline], []byte{'\r'})))
		} else {
			l.line.Write(b[:newline])
			l.events.Print(l.target, strings.TrimSuffix(l.line.String(), "\r"))
			l.line.Reset()
		}
		b = b[newline+1:]
		w += newline + 1
	}
	return w, nil
}

func (l *lineWriter) Flush() error {
	if l.line.Len() != 0 {
		l.events.Print(l.target, l.line.String())
		l.line.Reset()
	}
	return nil
}
