package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
	"github.com/thismarvin/cc"
	"github.com/thismarvin/cc/cmd/cc/internal/term"
)

type renderer interface {
	io.Closer
	cc.Events
}

type discardRendererT struct {
	cc.Events
}

func (discardRendererT) Close() error {
	return nil
}

var discardRenderer = discardRendererT{cc.DiscardEvents}

func stagedMessage(artifact, dest string, size int64) string {
	return fmt.Sprintf("staged %v into %v (%v)", artifact, dest, humanize.Bytes(uint64(size)))
}

// simple renderer
type lineRenderer struct {
	m       sync.Mutex
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
	explain bool
}

func (e *lineRenderer) Close() error {
	return nil
}

func (e *lineRenderer) Print(target string, line string) {
	if e.verbose {
		e.print(target, line)
	}
}

func (e *lineRenderer) LoadDone(err error) {
	e.m.Lock()
	defer e.m.Unlock()

	if err != nil {
		fmt.Fprintf(e.stderr, "failed to load project: %v\n", errMessage(err))
	} else if e.verbose {
		fmt.Fprintln(e.stdout, "project loaded")
	}
}

func (e *lineRenderer) TargetUpToDate(target string) {
	e.print(target, "up-to-date")
}

func (e *lineRenderer) TargetEvaluating(target string, reason string) {
	if e.explain {
		e.print(target, fmt.Sprintf("evaluating (%v)...", reason))
		return
	}
	e.print(target, "evaluating...")
}

func (e *lineRenderer) TargetFailed(target string, err error) {
	e.printe(target, fmt.Sprintf("failed: %v", errMessage(err)))
}

func (e *lineRenderer) TargetSucceeded(target string, changed bool) {
	e.print(target, "done")
}

func (e *lineRenderer) Staged(target, artifact, dest string, size int64) {
	e.print(target, stagedMessage(artifact, dest, size))
}

func (e *lineRenderer) RunDone(err error) {
	e.m.Lock()
	defer e.m.Unlock()

	if err != nil {
		fmt.Fprintf(e.stderr, "build failed: %v\n", errMessage(err))
	} else {
		fmt.Fprintln(e.stdout, "build succeeded")
	}
}

func (e *lineRenderer) FileChanged(path string) {
	e.print(path, "changed")
}

func (e *lineRenderer) print(target string, message string) {
	e.fprint(e.stdout, target, message)
}

func (e *lineRenderer) printe(target string, message string) {
	e.fprint(e.stderr, target, message)
}

func (e *lineRenderer) fprint(w io.Writer, target string, message string) {
	e.m.Lock()
	defer e.m.Unlock()

	fmt.Fprintf(w, "[%v] %v\n", target, message)
}

// DOT renderer
type dotRenderer struct {
	m    sync.Mutex
	next renderer
	dest io.WriteCloser
	work *workspace
}

func newDOTRenderer(dest io.WriteCloser, work *workspace, next renderer) renderer {
	return &dotRenderer{next: next, dest: dest, work: work}
}

func (e *dotRenderer) Close() error {
	e.dest.Close()
	return e.next.Close()
}

func (e *dotRenderer) Print(target string, line string) {
	e.next.Print(target, line)
}

func (e *dotRenderer) LoadDone(err error) {
	e.next.LoadDone(err)
}

func (e *dotRenderer) TargetUpToDate(target string) {
	e.decorateNode(target, func(n *node) { n.status = "up-to-date" })
	e.next.TargetUpToDate(target)
}

func (e *dotRenderer) TargetEvaluating(target string, reason string) {
	e.decorateNode(target, func(n *node) {
		n.status = "evaluated"
		n.reason = reason
	})
	e.next.TargetEvaluating(target, reason)
}

func (e *dotRenderer) TargetFailed(target string, err error) {
	e.decorateNode(target, func(n *node) { n.status = "failed" })
	e.next.TargetFailed(target, err)
}

func (e *dotRenderer) TargetSucceeded(target string, changed bool) {
	e.decorateNode(target, func(n *node) { n.status = "succeeded" })
	e.next.TargetSucceeded(target, changed)
}

func (e *dotRenderer) Staged(target, artifact, dest string, size int64) {
	e.next.Staged(target, artifact, dest, size)
}

func (e *dotRenderer) RunDone(err error) {
	e.m.Lock()
	e.work.graph.dot(e.dest, func(n *node) bool { return n.status != "" && n.status != "up-to-date" })
	e.m.Unlock()

	e.next.RunDone(err)
}

func (e *dotRenderer) FileChanged(path string) {
	e.next.FileChanged(path)
}

func (e *dotRenderer) decorateNode(target string, decorator func(n *node)) {
	e.m.Lock()
	defer e.m.Unlock()

	if node := e.work.graph.node(target); node != nil {
		decorator(node)
	}
}

// JSON renderer
type jsonRenderer struct {
	m      sync.Mutex
	next   renderer
	w      io.Writer
	closer io.Closer
	run    string
	now    func() time.Time

	// err holds the first error encountered while writing events.
	err error
}

func newJSONRenderer(dest io.WriteCloser, next renderer) renderer {
	return &jsonRenderer{
		next:   next,
		w:      dest,
		closer: dest,
		run:    uuid.New().String(),
		now:    time.Now,
	}
}

func (e *jsonRenderer) Close() error {
	e.m.Lock()
	err := e.err
	e.m.Unlock()

	return errors.Join(err, e.closer.Close(), e.next.Close())
}

func (e *jsonRenderer) Print(target string, line string) {
	e.event("Print", target, "line", line)
	e.next.Print(target, line)
}

func (e *jsonRenderer) LoadDone(err error) {
	e.event("LoadDone", "", "err", errMessage(err))
	e.next.LoadDone(err)
}

func (e *jsonRenderer) TargetUpToDate(target string) {
	e.event("TargetUpToDate", target)
	e.next.TargetUpToDate(target)
}

func (e *jsonRenderer) TargetEvaluating(target string, reason string) {
	e.event("TargetEvaluating", target, "reason", reason)
	e.next.TargetEvaluating(target, reason)
}

func (e *jsonRenderer) TargetFailed(target string, err error) {
	e.event("TargetFailed", target, "err", errMessage(err))
	e.next.TargetFailed(target, err)
}

func (e *jsonRenderer) TargetSucceeded(target string, changed bool) {
	e.event("TargetSucceeded", target, "changed", changed)
	e.next.TargetSucceeded(target, changed)
}

func (e *jsonRenderer) Staged(target, artifact, dest string, size int64) {
	e.event("Staged", target, "artifact", artifact, "dest", dest, "size", size)
	e.next.Staged(target, artifact, dest, size)
}

func (e *jsonRenderer) RunDone(err error) {
	e.event("RunDone", "", "err", errMessage(err))
	e.next.RunDone(err)
}

func (e *jsonRenderer) FileChanged(path string) {
	e.event("FileChanged", "", "path", path)
	e.next.FileChanged(path)
}

func (e *jsonRenderer) event(kind string, target string, pairs ...any) {
	e.m.Lock()
	defer e.m.Unlock()

	event := map[string]any{
		"kind": kind,
		"run":  e.run,
		"time": e.now().UTC().Format(time.RFC3339Nano),
	}
	if target != "" {
		event["target"] = target
	}
	if len(pairs)%2 != 0 {
		panic("oddly-sized pairs")
	}
	for i := 0; i < len(pairs); i += 2 {
		event[pairs[i].(string)] = pairs[i+1]
	}
	if err := writeJSON(e.w, event); err != nil && e.err == nil {
		e.err = err
	}
}

// writeJSON writes v to w as a single line of JSON.
func writeJSON(w io.Writer, v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// default renderer:
// +--------------------------------------------+
// | completed targets/verbose output...        |
// | evaluating targets...                      |
// | status line                                |
// | system stats                               |
// +--------------------------------------------+

type target struct {
	name   string
	reason string

	reasonShown bool

	status string
	failed bool
	start  time.Time

	lines []string

	prev *target
	next *target
}

func (t *target) setStatus(message string) {
	t.status = fmt.Sprintf("[%v] %v", t.name, message)
}

func (t *target) stamp(now time.Time) string {
	d := now.Sub(t.start).Truncate(time.Second)
	if d.Seconds() < 1 {
		return t.status
	}
	return fmt.Sprintf("%s (%v)", t.status, duration(d))
}

type targetList struct {
	head *target
	tail *target
}

func (l *targetList) append(t *target) {
	if l.head == nil {
		l.head = t
	} else {
		l.tail.next = t
		t.prev = l.tail
	}
	l.tail = t
}

func (l *targetList) remove(t *target) {
	if t.prev != nil {
		t.prev.next = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	}

	if l.head == t {
		l.head = t.next
	}
	if l.tail == t {
		l.tail = t.prev
	}

	t.next, t.prev = nil, nil
}

type statusRenderer struct {
	m sync.Mutex

	ticker  *time.Ticker
	stats   systemStats
	targets map[string]*target

	maxWidth int

	verbose bool
	explain bool
	lines   []string

	// interactive reports whether a target's command takes over the terminal. While such a
	// target runs, rendering is suspended.
	interactive func(name string) bool
	suspended   string

	lastUpdate time.Time
	dirty      bool
	rewind     int
	evaluating targetList
	done       targetList
	statusLine string

	stdout io.Writer
}

func (e *statusRenderer) line(text string) {
	e.rewind++

	if e.maxWidth > 0 && len(text) > e.maxWidth {
		text = text[:e.maxWidth-1]
	}
	fmt.Fprintf(e.stdout, "%s\n", text)
}

func (e *statusRenderer) render(now time.Time, closed bool) {
	e.m.Lock()
	defer e.m.Unlock()

	e.renderLocked(now, closed)
}

// NOTE: e.m must be held!
func (e *statusRenderer) renderLocked(now time.Time, closed bool) {
	if !e.dirty || e.suspended != "" {
		return
	}
	e.lastUpdate = now

	// Re-home the cursor.
	for ; e.rewind > 0; e.rewind-- {
		term.CursorUp(e.stdout, 1)
		term.ClearLine(e.stdout, e.maxWidth)
	}

	// Write any verbose output that has come in since the last frame.
	for _, l := range e.lines {
		fmt.Fprintln(e.stdout, l)
	}
	e.lines = e.lines[:0]

	// Explain why targets are being rebuilt.
	if e.explain {
		for t := e.evaluating.head; t != nil; t = t.next {
			e.renderReason(t)
		}
		for t := e.done.head; t != nil; t = t.next {
			e.renderReason(t)
		}
	}

	// Write any targets that have finished since the last frame.
	for t := e.done.head; t != nil; t = t.next {
		fmt.Fprintf(e.stdout, "%s\n", t.status)

		if t.failed && !e.verbose {
			for _, line := range t.lines {
				fmt.Fprintln(e.stdout, line)
			}
		}
	}
	e.done = targetList{}

	// Render in-progress targets.
	for t := e.evaluating.head; t != nil; t = t.next {
		e.line(t.stamp(now))
	}

	if e.statusLine != "" && !closed {
		e.line(e.statusLine)
		e.statusLine = ""
	}

	if !closed && e.evaluating.head != nil {
		e.line(e.stats.line())
	}

	e.dirty = false
}

var (
	colorRed    = color.New(color.FgRed)
	colorGreen  = color.New(color.FgGreen)
	colorYellow = color.New(color.FgYellow)
)

func (e *statusRenderer) renderReason(t *target) {
	if t.reasonShown || t.reason == "" {
		return
	}
	fmt.Fprintf(e.stdout, "[%v] %s\n", t.name, colorYellow.Sprint(t.reason))
	t.reasonShown = true
}

func (e *statusRenderer) Print(name string, line string) {
	e.m.Lock()
	defer e.m.Unlock()

	if t, ok := e.targets[name]; ok {
		t.lines = append(t.lines, line)
	}

	if e.verbose {
		e.lines = append(e.lines, fmt.Sprintf("[%v] %v", name, line))
		e.dirty = true
	}
}

func (e *statusRenderer) LoadDone(err error) {
	e.m.Lock()
	defer e.m.Unlock()

	if err != nil {
		e.lines = append(e.lines, colorRed.Sprintf("failed to load project: %v", errMessage(err)))
	}
	e.dirty = true
}

func (e *statusRenderer) TargetUpToDate(name string) {
	e.m.Lock()
	defer e.m.Unlock()

	e.statusLine = color.WhiteString("[%s] up-to-date", name)
	e.dirty = true
}

func (e *statusRenderer) TargetEvaluating(name string, reason string) {
	e.m.Lock()
	defer e.m.Unlock()

	t := &target{name: name, reason: reason, start: time.Now()}
	e.targets[name] = t
	t.setStatus("running...")
	e.dirty = true

	if e.interactive == nil || !e.interactive(name) {
		e.evaluating.append(t)
		return
	}

	// Flush everything so far and hand the terminal to the command.
	e.renderLocked(time.Now(), true)
	fmt.Fprintf(e.stdout, "%s\n", t.status)
	e.rewind, e.suspended = 0, name
}

func (e *statusRenderer) targetDone(name string, message string, changed, failed bool) {
	e.m.Lock()
	defer e.m.Unlock()

	t := e.targets[name]
	if t == nil {
		t = &target{name: name, start: time.Now()}
	}

	t.setStatus(message)
	t.status = t.stamp(time.Now())
	t.failed = failed

	e.evaluating.remove(t)

	if changed || failed {
		e.done.append(t)
	}

	delete(e.targets, name)

	if e.suspended == name {
		e.suspended = ""
	}
	e.dirty = true
}

func (e *statusRenderer) TargetFailed(name string, err error) {
	e.targetDone(name, colorRed.Sprintf("failed: %v", errMessage(err)), true, true)
}

func (e *statusRenderer) TargetSucceeded(name string, changed bool) {
	e.targetDone(name, colorGreen.Sprint("done"), changed, false)
}

func (e *statusRenderer) Staged(name, artifact, dest string, size int64) {
	e.m.Lock()
	defer e.m.Unlock()

	if t, ok := e.targets[name]; ok {
		t.setStatus(stagedMessage(artifact, dest, size))
	}
	e.dirty = true
}

// The run's error is reported by main once the renderer is closed.
func (e *statusRenderer) RunDone(err error) {
	e.m.Lock()
	defer e.m.Unlock()

	e.dirty = true
}

func (e *statusRenderer) FileChanged(path string) {
	e.m.Lock()
	defer e.m.Unlock()

	e.statusLine = colorYellow.Sprintf("[%s] changed", path)
	e.dirty = true
}

func (e *statusRenderer) Close() error {
	e.ticker.Stop()

	e.m.Lock()
	defer e.m.Unlock()

	e.suspended = ""
	e.renderLocked(time.Now(), true)
	return nil
}

func newRenderer(work *workspace, verbose, quiet bool) (renderer, error) {
	if quiet {
		return discardRenderer, nil
	}

	new := func(_ renderer) renderer {
		width := term.Width(os.Stdout)
		if width == 0 {
			return &lineRenderer{stdout: os.Stdout, stderr: os.Stderr, verbose: verbose, explain: work.explain}
		}

		events := &statusRenderer{
			ticker:      time.NewTicker(16 * time.Millisecond),
			targets:     map[string]*target{},
			maxWidth:    width,
			verbose:     verbose,
			explain:     work.explain,
			interactive: work.interactive,
			stdout:      os.Stdout,
			lastUpdate:  time.Now(),
		}

		events.stats.update(time.Now())

		go func() {
			for now := range events.ticker.C {
				events.m.Lock()
				if now.Sub(events.lastUpdate).Seconds() >= 1 {
					events.dirty = true
				}
				if events.stats.update(now) {
					events.dirty = true
				}
				events.renderLocked(now, false)
				events.m.Unlock()
			}
		}()

		return events
	}

	type rendererFunc func(next renderer) renderer
	pipeline := []rendererFunc{new}

	if buildJSON != "" {
		if buildJSON == "-" {
			return newJSONRenderer(os.Stdout, discardRenderer), nil
		}

		f, err := os.Create(buildJSON)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, func(next renderer) renderer {
			return newJSONRenderer(f, next)
		})
	}

	if buildDOT != "" {
		if buildDOT == "-" {
			return newDOTRenderer(os.Stdout, work, discardRenderer), nil
		}

		f, err := os.Create(buildDOT)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, func(next renderer) renderer {
			return newDOTRenderer(f, work, next)
		})
	}

	var r renderer
	for _, p := range pipeline {
		r = p(r)
	}
	return r, nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
