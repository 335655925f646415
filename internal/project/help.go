package project

import (
	"bufio"
	"io"
	"strings"
)

// HelpMarker introduces a help line in a configuration file.
const HelpMarker = "##"

// A HelpEntry documents a single command or target.
type HelpEntry struct {
	Name        string
	Description string
}

// ListHelp scans r for lines of the form "## name : description" and returns their entries in
// order of appearance. Lines that start with the marker but lack a separator are ignored.
func ListHelp(r io.Reader) ([]HelpEntry, error) {
	var entries []HelpEntry

	s := bufio.NewScanner(r)
	for s.Scan() {
		line, ok := strings.CutPrefix(strings.TrimSpace(s.Text()), HelpMarker)
		if !ok || strings.HasPrefix(line, "#") {
			continue
		}
		name, desc, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entries = append(entries, HelpEntry{Name: name, Description: strings.TrimSpace(desc)})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
