// Command bankctl operates a battery bank from the command line.
//
// With the default memory store every invocation starts empty, which suits
// the demo command. Point --store at redis to keep facilities and ledgers
// between invocations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes bankctl with args and releases every resource it opened.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := newApp(out, errOut)
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}
