package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
	fail  error
}

func (f *fakeExec) status() string { return "" }

func (f *fakeExec) record(name string) command {
	return func(_ context.Context, args []string) error {
		f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
		return f.fail
	}
}

func (f *fakeExec) commands() map[string]command {
	return map[string]command{
		"sites": f.record("sites"),
		"get":   f.record("get"),
		"sync":  f.record("sync"),
	}
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, fmt.Sprintln(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"sites",
		"get https://moodle.test/pluginfile.php/1/a.pdf mod_resource 7",
		"foobar",
		"sync",
		"exit",
		"sites",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, bufio.NewScanner(input))

	want := []string{"sites", "get https://moodle.test/pluginfile.php/1/a.pdf mod_resource 7", "sync"}
	if strings.Join(exec.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}

	joined := strings.Join(*out, "")
	for _, s := range []string{"Available commands", "Unknown command: foobar", "Bye!"} {
		if !strings.Contains(joined, s) {
			t.Fatalf("output misses %q:\n%s", s, joined)
		}
	}
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{fail: errors.New("boom")}
	runREPL(context.Background(), exec, bufio.NewScanner(strings.NewReader("sync\nsites\n")))

	if len(exec.calls) != 2 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	if !strings.Contains(strings.Join(*out, ""), "Error: boom") {
		t.Fatalf("error not printed: %v", *out)
	}
}

func TestRunREPL_StopsOnCanceledContext(t *testing.T) {
	captureOutput(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, bufio.NewScanner(strings.NewReader("sync\nsync\n")))

	if len(exec.calls) != 1 {
		t.Fatalf("calls = %v, want a single call", exec.calls)
	}
}
