package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	status() string
	commands() map[string]command
}

const helpText = `Available commands:
  sites                              list registered sites
  addsite <url> [token]              register a site (token is prompted when omitted)
  use <site-id>                      select the site the file commands work on
  delsite <site-id>                  remove a site and every file it owns
  get <url> [component [id]]         download a file and print its local URL
  url <url> [component [id]]         print the local URL, or the remote one while queued
  state <url>                        print the download state of a file
  queue                              list pending downloads
  files <component> [id]             list files used by a component
  hasfiles <component> [id]          report whether a component has files
  invalidate <url>                   mark a file as outdated
  invalidatecomp <component> [id]    mark the files of a component as outdated
  invalidateall                      mark every file of the site as outdated
  rm <url>                           remove a file
  rmcomp <component> [id]            remove the files of a component
  sync                               queue every outdated file for download
  help                               show this help
  exit | quit                        leave the program`

// runREPL reads commands line by line and dispatches them to a. Command
// errors are printed and do not stop the loop. It returns on EOF or when
// the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	cmds := a.commands()
	for {
		printlnFn(fmt.Sprintf("filepool%s> ", a.status()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			printlnFn(helpText)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			cmd, ok := cmds[name]
			if !ok {
				printlnFn("Unknown command:", name)
				continue
			}
			if err := cmd(ctx, args); err != nil {
				printlnFn("Error:", err.Error())
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
