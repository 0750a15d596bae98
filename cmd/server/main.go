// Command server serves files from a base directory to udpftp clients
// using the reliable-transfer protocol over UDP.
//
// Usage:
//
//	server [-d] [-base-dir DIR] error_rate [port]
//
// port 0 (or omitted) lets the OS choose an ephemeral port; the bound
// address is logged to stderr so a client or test harness can connect to it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/handshake"
	"github.com/iluksbr/udpftp/internal/logger"
	"github.com/iluksbr/udpftp/internal/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: server [-d] [-base-dir DIR] error_rate [port]")
}

func main() {
	debug := flag.Bool("d", false, "enable debug logging")
	host := flag.String("host", "0.0.0.0", "address to bind the well-known endpoint on")
	baseDir := flag.String("base-dir", ".", "directory files are served from")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		usage()
		os.Exit(1)
	}

	if err := config.ValidateErrorRate(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	errorRate, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid error_rate:", err)
		os.Exit(1)
	}

	port := 0
	if len(args) == 2 {
		port, err = strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid port:", err)
			os.Exit(1)
		}
	}

	level := logger.INFO
	if *debug {
		level = logger.DEBUG
	}
	log := logger.NewLogger(level, os.Stderr, "server")

	parent, err := handshake.ListenParent(*host, port, *baseDir)
	if err != nil {
		log.Fatal("listen: %v", err)
	}
	defer parent.Close()

	log.Info("serving %s from %s on %s", args[0], *baseDir, parent.LocalAddr())

	if err := session.ServerLoop(parent, *host, *baseDir, errorRate, log); err != nil {
		log.Error("server loop stopped: %v", err)
		os.Exit(1)
	}
}
