// Command client requests a file from a udpftp server and writes it to
// disk, using the reliable-transfer protocol over an unreliable UDP
// datagram channel.
//
// Usage:
//
//	client [-d] from_filename to_filename window_size buffer_size error_rate remote_host remote_port
//	client [-d] -list remote_host remote_port
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/listing"
	"github.com/iluksbr/udpftp/internal/logger"
	"github.com/iluksbr/udpftp/internal/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client [-d] from_filename to_filename window_size buffer_size error_rate remote_host remote_port")
	fmt.Fprintln(os.Stderr, "       client [-d] -list remote_host remote_port")
}

func main() {
	debug := flag.Bool("d", false, "enable debug logging")
	list := flag.Bool("list", false, "list files served by remote_host:remote_port and exit")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()

	if *list {
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid remote_port:", err)
			os.Exit(1)
		}
		names, err := listing.Query(args[0], port, 2*time.Second)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list failed:", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if len(args) != 7 {
		usage()
		os.Exit(1)
	}

	fromFilename := args[0]
	toFilename := args[1]

	windowSize, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid window_size:", err)
		os.Exit(1)
	}
	bufferSize, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid buffer_size:", err)
		os.Exit(1)
	}
	errorRate, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid error_rate:", err)
		os.Exit(1)
	}
	remoteHost := args[5]
	remotePort, err := strconv.Atoi(args[6])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid remote_port:", err)
		os.Exit(1)
	}

	if err := config.ValidateWindowSize(args[2]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.ValidateBufferSize(args[3]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.ValidateErrorRate(args[4]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := logger.INFO
	if *debug {
		level = logger.DEBUG
	}
	log := logger.NewLogger(level, os.Stderr, "client")

	start := time.Now()
	stats, err := session.ClientRequest(remoteHost, remotePort, fromFilename, toFilename, windowSize, bufferSize, errorRate, log)
	if err != nil {
		log.Error("transfer failed: %v", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)
	log.Info("transfer complete: %d frames delivered, %d duplicates, %d SREJs sent in %s",
		stats.DataFramesDelivered, stats.DuplicatesDiscarded, stats.SREJsSent, elapsed)
}
