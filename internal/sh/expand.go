package sh

import (
	"mvdan.cc/sh/v3/shell"
)

// Expand performs parameter expansion on s as if it were enclosed in double quotes. Variables
// are looked up with lookup; unset variables expand to the empty string. Command substitution
// is not supported.
func Expand(s string, lookup func(name string) (string, bool)) (string, error) {
	return shell.Expand(s, func(name string) string {
		v, _ := lookup(name)
		return v
	})
}
