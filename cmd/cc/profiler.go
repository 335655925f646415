package main

import (
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

type profiler struct {
	cpuPath   string
	memPath   string
	tracePath string

	cpu   *os.File
	trace *os.File
}

func (p *profiler) start() (err error) {
	if p.cpuPath != "" {
		if p.cpu, err = os.Create(p.cpuPath); err != nil {
			return err
		}
		if err = pprof.StartCPUProfile(p.cpu); err != nil {
			return err
		}
	}
	if p.tracePath != "" {
		if p.trace, err = os.Create(p.tracePath); err != nil {
			return err
		}
		if err = trace.Start(p.trace); err != nil {
			return err
		}
	}
	return nil
}

func (p *profiler) stop() error {
	var err error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		err = errors.Join(err, p.cpu.Close())
	}
	if p.trace != nil {
		trace.Stop()
		err = errors.Join(err, p.trace.Close())
	}
	if p.memPath != "" {
		err = errors.Join(err, p.writeHeapProfile())
	}
	return err
}

func (p *profiler) writeHeapProfile() error {
	f, err := os.Create(p.memPath)
	if err != nil {
		return err
	}
	runtime.GC()
	return errors.Join(pprof.WriteHeapProfile(f), f.Close())
}
