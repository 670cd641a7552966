package cli

import (
	"flag"
	"time"
)

type Options struct {
	ChannelBufferSize int
	NumWorkers        int
	Operation         string
	PidFile           string
	PrintHelp         bool
	RequeueTimeout    time.Duration
}

var opts = Options{}
var defaultBufSize = 20
var defaultWorkers = 1

var EnvMessage = `This requires the following environment vars:

PIGEON_CONFIG_DIR - Path to the directory containing the .env settings file.

PIGEON_ENV - Name of the configuration to load. For example:
    test - Loads .env.test from PIGEON_CONFIG_DIR
    prod - Loads .env.prod from PIGEON_CONFIG_DIR

Any setting in the .env file can be overridden by an environment
variable of the same name.
`

func Init() {
	flag.IntVar(&opts.ChannelBufferSize, "bufsize", defaultBufSize, "Channel buffer size for go workers")
	flag.IntVar(&opts.NumWorkers, "workers", defaultWorkers, "Number of go routines running archive or metadata jobs")
	flag.StringVar(&opts.Operation, "operation", "archive", "Which topic to consume: archive or metadata")
	flag.StringVar(&opts.PidFile, "pid-file", "", "Refuse to start if another live process holds this pid file")
	flag.BoolVar(&opts.PrintHelp, "help", false, "Print help message")
	flag.DurationVar(&opts.RequeueTimeout, "requeue-timeout", 0, "Delay before a requeued message comes back. Zero keeps the worker's default. Format examples: 500ms, 12s, 10m")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}
