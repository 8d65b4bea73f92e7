// Package cli provides the interactive filepool command-line client.
//
// The client runs the file pool in-process: sites are registered with
// their web-service token, files are fetched into the local pool and the
// pool can be inspected, invalidated and pruned from the prompt. Pending
// downloads keep running in the background while the prompt is open.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
