package main

import (
	"fmt"
	"time"
)

type duration time.Duration

func (d duration) String() string {
	td := time.Duration(d).Truncate(time.Second)

	hours, minutes, seconds := int(td.Hours()), int(td.Minutes())%60, int(td.Seconds())%60
	if hours == 0 {
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	}

	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}
