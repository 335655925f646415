package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type cpuStats struct {
	count int

	busy    float64
	percent float64
}

func (s *cpuStats) update(delta float64) {
	if s.count == 0 {
		const logical = true
		s.count, _ = cpu.Counts(logical)
		if s.count == 0 {
			s.count = 1
		}
	}

	const perCPU = false
	stats, err := cpu.Times(perCPU)
	if err != nil || len(stats) == 0 {
		return
	}

	t := stats[0]
	busy := t.Total() - t.Idle - t.Iowait

	s.percent = 100.0 * (busy - s.busy) / delta / float64(s.count)
	s.busy = busy
}

func (s *cpuStats) String() string {
	return fmt.Sprintf("CPU: %3.0f%%", s.percent)
}

type memStats struct {
	total uint64
	used  uint64
}

func (s *memStats) update() {
	stats, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	s.total, s.used = stats.Total, stats.Used
}

func (s *memStats) String() string {
	if s.total == 0 {
		return "Mem: ?"
	}

	total, units := humanize.ComputeSI(float64(s.total))
	scale := total / float64(s.total)

	totalStr := strconv.FormatFloat(total, 'f', 0, 64)
	usedStr := strconv.FormatFloat(float64(s.used)*scale, 'f', 0, 64)

	return fmt.Sprintf("Mem: %s/%s%sB", usedStr, totalStr, units)
}

// diskStats tracks disk throughput, which is dominated by compilers and staging while a build runs.
type diskStats struct {
	read  uint64
	write uint64

	readRate  float64
	writeRate float64
}

func (s *diskStats) update(delta float64) {
	stats, err := disk.IOCounters()
	if err != nil {
		return
	}

	var read, write uint64
	for _, c := range stats {
		read, write = read+c.ReadBytes, write+c.WriteBytes
	}

	if s.read != 0 || s.write != 0 {
		s.readRate = float64(read-s.read) / delta
		s.writeRate = float64(write-s.write) / delta
	}
	s.read, s.write = read, write
}

func rate(bytesPerSecond float64) string {
	if bytesPerSecond < 1 {
		return "0B/s"
	}
	v, units := humanize.ComputeSI(bytesPerSecond)
	return strconv.FormatFloat(v, 'f', 0, 64) + units + "B/s"
}

func (s *diskStats) String() string {
	return fmt.Sprintf("Disk: ⬇%s ⬆%s", rate(s.readRate), rate(s.writeRate))
}

type systemStats struct {
	cpu  cpuStats
	mem  memStats
	disk diskStats

	when time.Time
}

func (s *systemStats) update(now time.Time) bool {
	delta := now.Sub(s.when).Seconds()
	if delta < 1.0 {
		return false
	}
	s.when = now

	s.cpu.update(delta)
	s.mem.update()
	s.disk.update(delta)
	return true
}

func (s *systemStats) line() string {
	return strings.Join([]string{s.cpu.String(), s.mem.String(), s.disk.String()}, " ")
}
