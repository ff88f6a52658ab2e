// Command enginectl is a thin client for the engine's control channel
// (C9): it sends one whitespace-delimited command over a Unix datagram
// socket and prints the reply. Grounded on the teacher's own operator CLI
// shape (flag-parsed socket/timeout, single request/response round
// trip).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ironbee-go/engine/internal/control"
)

func main() {
	sockPath := flag.String("socket", "/var/run/ironbee-engine/control.sock", "path to the engine's control socket")
	timeout := flag.Duration("timeout", 2*time.Second, "reply timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-socket path] [-timeout dur] COMMAND [ARGS...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	message := strings.Join(flag.Args(), " ")
	resp, st := control.Send(*sockPath, message, *timeout)
	if !st.OK() {
		fmt.Fprintf(os.Stderr, "enginectl: %v\n", st)
		os.Exit(1)
	}
	fmt.Println(resp)
}
