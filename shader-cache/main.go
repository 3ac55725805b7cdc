package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.sr.ht/~sircmpwn/getopt"
)

type serverOptions struct {
	dbName   string
	addr     string
	dir      string
	compress bool
	clean    time.Duration
}

func usage() {
	fmt.Printf(`usage: shader-cache [options]

options:
  -b FILE  shader entry database [default=shader-cache.db]
  -l ADDR  TCP address to listen to [default=localhost:8080]
  -d DIR   directory to store cache files in [default=shaders]
  -e DUR   idle time before a cache file expires [default=168h]
  -i DUR   interval of the expired file cleaning [default=10m]
  -z       compress responses transparently
  -h       print this message
`)
}

func readFlags(args []string, options *serverOptions) int {
	opts, _, err := getopt.Getopts(args, "b:l:d:e:i:zh")
	if err != nil {
		log.Println(err)
		usage()
		return 1
	}
	for _, opt := range opts {
		switch opt.Option {
		case 'b':
			options.dbName = opt.Value
		case 'l':
			options.addr = opt.Value
		case 'd':
			options.dir = opt.Value
		case 'e', 'i':
			d, err := time.ParseDuration(opt.Value)
			if err != nil || d <= 0 {
				log.Printf("invalid duration '%s'", opt.Value)
				return 1
			}
			if opt.Option == 'e' {
				expiredDuration = d
			} else {
				options.clean = d
			}
		case 'z':
			options.compress = true
		case 'h':
			usage()
			return 0
		}
	}
	return -1
}

func shutdown(ctx context.Context) {
	StopScheduler()
	if fsServer != nil {
		if err := fsServer.ShutdownWithContext(ctx); err != nil {
			log.Println(err)
		}
	}
	if err := CloseDb(); err != nil {
		log.Println(err)
	}
}

func main() {
	options := serverOptions{
		dbName: "shader-cache.db",
		addr:   "localhost:8080",
		dir:    "shaders",
		clean:  10 * time.Minute,
	}
	if exit := readFlags(os.Args, &options); exit >= 0 {
		os.Exit(exit)
	}
	if err := os.MkdirAll(options.dir, 0o755); err != nil {
		log.Fatal(err)
	}
	if err := OpenDb(options.dbName); err != nil {
		log.Fatal(err)
	}
	if err := StartExpiredCleanSchedule(options.clean); err != nil {
		log.Fatal(err)
	}
	go ServeShaders(options.addr, options.dir, options.compress)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch

	fmt.Println("Interrupted. Exiting.")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdown(ctx)
}
