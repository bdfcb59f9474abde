// Command indexsyncctl is an interactive admin shell for a running
// indexsyncd instance: it talks to the admin HTTP surface over a
// readline prompt instead of requiring one-shot curl invocations.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ergochat/readline"
)

// REPL per se.
type REPL struct {
	baseURL string
	client  *http.Client
	rl      *readline.Instance
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("healthz"),
	readline.PcItem("indexes"),
	readline.PcItem("inflight"),
	readline.PcItem("delta"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "indexsync> ",
		HistoryFile:     ".indexsyncctl_history.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

func (repl *REPL) REPL() error {
	line, err := repl.rl.Readline()
	if err == readline.ErrInterrupt && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}

	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		repl.printHelp()
	case "healthz":
		repl.get("/healthz")
	case "indexes":
		repl.get("/status/indexes")
	case "inflight":
		repl.get("/status/inflight")
	case "delta":
		repl.postDelta(rest)
	case "exit", "quit":
		return io.EOF
	default:
		fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
	}
	return nil
}

func (repl *REPL) printHelp() {
	fmt.Fprintln(os.Stdout, "healthz            check service health")
	fmt.Fprintln(os.Stdout, "indexes            list registered indexes and their state")
	fmt.Fprintln(os.Stdout, "inflight           list jobs currently being processed")
	fmt.Fprintln(os.Stdout, "delta <json-array> post a delta message for routing")
	fmt.Fprintln(os.Stdout, "exit, quit         leave the shell")
}

func (repl *REPL) get(path string) {
	resp, err := repl.client.Get(repl.baseURL + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		return
	}
	repl.printResponse(resp)
}

func (repl *REPL) postDelta(body string) {
	if body == "" {
		fmt.Fprintln(os.Stderr, "usage: delta <json-array>")
		return
	}
	resp, err := repl.client.Post(repl.baseURL+"/delta", "application/json", bytes.NewBufferString(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		return
	}
	repl.printResponse(resp)
}

func (repl *REPL) printResponse(resp *http.Response) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading response: %s\n", err.Error())
		return
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Fprintf(os.Stdout, "%s %s\n", resp.Status, pretty.String())
	} else {
		fmt.Fprintf(os.Stdout, "%s %s\n", resp.Status, string(raw))
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8888", "indexsyncd admin base URL")
	flag.Parse()

	repl := REPL{
		baseURL: strings.TrimRight(*addr, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	if err := repl.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
	defer repl.Close()

	var err error
	for !errors.Is(err, io.EOF) {
		if err != nil {
			fmt.Fprintf(os.Stdout, "%s\n", err.Error())
			err = nil
		}
		err = repl.REPL()
	}
}
