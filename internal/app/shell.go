package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/console"
	"github.com/dshills/detonator/internal/integration/catalogue"
	"github.com/dshills/detonator/internal/integration/engine"
)

const shellPrompt = "detonator> "

const shellHelp = `Commands:
  list                              List tools
  check <tool>                      Check a tool's dependencies
  run <tool> [args...]              Start a tool in the background
  exec [-elevated] <prog> [args...] Start any program in the background
  jobs                              List jobs started in this shell
  ps                                Show running processes with CPU and memory
  cancel <pid>                      Ask a process to terminate
  wait [pid]                        Wait for one or all jobs to finish
  save <pid> <file>                 Save a finished job's output
  help                              Show this help
  quit                              Terminate running jobs and exit
`

// syncWriter serializes writes from concurrently running jobs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// job is one execution started from the shell.
type job struct {
	pid     int
	title   string
	started time.Time
	session *console.Session
}

// Shell is an interactive session that can run several tools at once.
type Shell struct {
	app *Application
	out io.Writer

	mu   sync.Mutex
	jobs map[int]*job

	watcher *catalogue.Watcher
}

// NewShell creates a shell bound to app's streams.
func (app *Application) NewShell() *Shell {
	return &Shell{
		app:  app,
		out:  &syncWriter{w: app.stdout},
		jobs: make(map[int]*job),
	}
}

// Run reads commands until quit, end of input or ctx is done.
func (sh *Shell) Run(ctx context.Context) error {
	if err := sh.startWatcher(); err != nil {
		fmt.Fprintf(sh.out, "catalogue watch disabled: %v\n", err)
	}
	defer sh.stopWatcher()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(sh.app.stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(sh.out, shellPrompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(sh.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(sh.out)
				return nil
			}
			line = l
		}

		err := sh.Execute(ctx, line)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// Execute runs one command line.
func (sh *Shell) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
		return nil
	case "quit", "exit":
		return ErrQuit
	case "list":
		return sh.list()
	case "check":
		if len(args) != 1 {
			return usageError("check <tool>")
		}
		return sh.check(args[0])
	case "run":
		if len(args) == 0 {
			return usageError("run <tool> [args...]")
		}
		return sh.runTool(ctx, args[0], args[1:])
	case "exec":
		elevated := false
		if len(args) > 0 && (args[0] == "-elevated" || args[0] == "--elevated") {
			elevated = true
			args = args[1:]
		}
		if len(args) == 0 {
			return usageError("exec [-elevated] <program> [args...]")
		}
		req := engine.Request{Program: args[0], Args: args[1:]}
		if elevated {
			req.Privilege = engine.Elevated
		}
		return sh.start(ctx, args[0], req)
	case "jobs":
		return sh.listJobs()
	case "ps":
		return sh.ps()
	case "cancel":
		pid, err := pidArg(args, "cancel <pid>")
		if err != nil {
			return err
		}
		outcome, err := sh.app.engine.Cancel(pid)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "[%d] %s\n", pid, outcome)
		return nil
	case "wait":
		if len(args) == 0 {
			return sh.waitAll(ctx)
		}
		pid, err := pidArg(args, "wait [pid]")
		if err != nil {
			return err
		}
		return sh.wait(ctx, pid)
	case "save":
		if len(args) != 2 {
			return usageError("save <pid> <file>")
		}
		pid, err := pidArg(args[:1], "save <pid> <file>")
		if err != nil {
			return err
		}
		return sh.save(pid, args[1])
	default:
		return usageError("unknown command %q, try help", cmd)
	}
}

func pidArg(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, usageError("%s", usage)
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return 0, usageError("%s: invalid pid %q", usage, args[0])
	}
	return pid, nil
}

func (sh *Shell) list() error {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROGRAM\tMODE\tDESCRIPTION")
	for _, t := range sh.app.catalogue.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Program, t.Privilege(), t.Description)
	}
	return tw.Flush()
}

func (sh *Shell) check(name string) error {
	tool, err := sh.app.resolveTool(name)
	if err != nil {
		return err
	}
	report := sh.app.checker.Check(tool.Deps()...)
	fmt.Fprintf(sh.out, "%s: %s\n", tool.Name, report)
	return nil
}

func (sh *Shell) runTool(ctx context.Context, name string, args []string) error {
	tool, err := sh.app.resolveTool(name)
	if err != nil {
		return err
	}
	if report := sh.app.checker.Check(tool.Deps()...); !report.Available() {
		return &DependencyError{Tool: tool.Name, Missing: report.Missing()}
	}
	return sh.start(ctx, tool.Name, tool.Request(args...))
}

// start launches req in the background and records it as a job.
func (sh *Shell) start(ctx context.Context, title string, req engine.Request) error {
	sess := console.New(title,
		console.WithMirror(sh.out),
		console.WithLogger(sh.app.logger))
	sess.Begin()

	out, err := sh.app.engine.Execute(ctx, req, sess.OnData, sess.OnTerminate)
	if err != nil {
		return err
	}
	sess.Started(out.PID)

	sh.mu.Lock()
	sh.jobs[out.PID] = &job{pid: out.PID, title: title, started: time.Now(), session: sess}
	sh.mu.Unlock()

	fmt.Fprintf(sh.out, "[%d] started %s\n", out.PID, title)
	return nil
}

func (sh *Shell) sortedJobs() []*job {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	jobs := make([]*job, 0, len(sh.jobs))
	for _, j := range sh.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].started.Before(jobs[k].started) })
	return jobs
}

func (sh *Shell) job(pid int) (*job, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	j, ok := sh.jobs[pid]
	if !ok {
		return nil, fmt.Errorf("no job with pid %d", pid)
	}
	return j, nil
}

func (sh *Shell) listJobs() error {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tTOOL\tSTATUS\tSAVED")
	for _, j := range sh.sortedJobs() {
		st := j.session.Snapshot()
		status := "running"
		if st.Last != nil {
			status = st.Last.Classification().String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", j.pid, j.title, status, st.HasSaved)
	}
	return tw.Flush()
}

func (sh *Shell) ps() error {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tPROGRAM\tMODE\tELAPSED\tCPU%\tRSS")
	for _, h := range sh.app.engine.Active() {
		mode := engine.Direct
		if h.Elevated() {
			mode = engine.Elevated
		}
		cpu, rss := "-", "-"
		if stats, err := h.Stats(); err == nil {
			cpu = fmt.Sprintf("%.1f", stats.CPUPercent)
			rss = formatBytes(stats.RSS)
		} else {
			sh.app.logger.Debug("process stats", zap.Int("pid", h.PID()), zap.Error(err))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			h.PID(), h.Program(), mode, h.Runtime().Round(time.Second), cpu, rss)
	}
	return tw.Flush()
}

func (sh *Shell) wait(ctx context.Context, pid int) error {
	j, err := sh.job(pid)
	if err != nil {
		return err
	}
	select {
	case <-j.session.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sh *Shell) waitAll(ctx context.Context) error {
	for _, j := range sh.sortedJobs() {
		select {
		case <-j.session.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (sh *Shell) save(pid int, path string) error {
	j, err := sh.job(pid)
	if err != nil {
		return err
	}
	if err := j.session.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "[%d] output saved to %s\n", pid, path)
	return nil
}

func (sh *Shell) startWatcher() error {
	cfg := sh.app.config.Catalogue
	path := sh.app.config.CataloguePath()
	if !cfg.Watch || path == "" {
		return nil
	}

	w, err := catalogue.Watch(path, sh.app.catalogue,
		catalogue.WithBase(catalogue.Builtin()),
		catalogue.WithWatchLogger(sh.app.logger.Named("catalogue")),
		catalogue.OnReload(func(tools []catalogue.Tool, err error) {
			if err != nil {
				fmt.Fprintf(sh.out, "\ncatalogue reload failed: %v\n", err)
				return
			}
			fmt.Fprintf(sh.out, "\ncatalogue reloaded: %d tools from %s\n", len(tools), path)
		}),
	)
	if err != nil {
		return err
	}
	sh.watcher = w
	return nil
}

func (sh *Shell) stopWatcher() {
	if sh.watcher == nil {
		return
	}
	if err := sh.watcher.Close(); err != nil {
		sh.app.logger.Debug("close catalogue watcher", zap.Error(err))
	}
	sh.watcher = nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
