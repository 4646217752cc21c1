package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/reha-link/rehalink-platform/internal/cli"
)

func main() {
	var opts cli.Options
	flag.StringVar(&opts.BaseURL, "url", "http://127.0.0.1:8080", "gateway base URL")
	flag.StringVar(&opts.Username, "user", "patient1", "patient username")
	flag.StringVar(&opts.Password, "pass", "patient1", "patient password")
	flag.Parse()

	if err := cli.Run(context.Background(), os.Stdin, os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
