package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

type command struct {
	name  string
	usage string
	run   func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"request", "run one protocol request offline (file or stdin)", requestCmd},
	{"import", "convert an LDraw model into lattice units", importCmd},
	{"inspect", "decode an STL or 3MF artifact and report its mesh", inspectCmd},
	{"journal", "summarize request/export journal files", journalCmd},
	{"db", "query the sqlite export index", dbCmd},
	{"status", "fetch /v1/status from a running server", statusCmd},
	{"send", "POST a request file to a running server", sendCmd},
}

var logger = log.New(os.Stderr, "[brickctl] ", log.LstdFlags)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) == 0 {
		usage(os.Stderr)
		return 2
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:], stdout); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 2
			}
			var ue usageError
			if errors.As(err, &ue) {
				fmt.Fprintln(os.Stderr, ue.Error())
				return 2
			}
			logger.Printf("%s: %v", c.name, err)
			return 1
		}
		return 0
	}
	usage(os.Stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: brickctl <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads path, or stdin when path is "" or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
