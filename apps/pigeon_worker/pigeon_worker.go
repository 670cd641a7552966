package main

import (
	"fmt"
	"os"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/CenterForOpenScience/pigeon-services/util/cli"
	"github.com/CenterForOpenScience/pigeon-services/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		os.Exit(0)
	}
	if opts.PidFile != "" {
		if err := util.ClaimPidFile(opts.PidFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer util.DeletePidFile(opts.PidFile)
	}

	// If anything goes wrong, this panics.
	_context := services.NewContext(common.NewConfig())

	var base *workers.Base
	switch opts.Operation {
	case constants.OpArchive:
		base = workers.NewArchiveWorker(_context, opts.ChannelBufferSize, opts.NumWorkers).Base
	case constants.OpSyncMetadata:
		base = workers.NewMetadataWorker(_context, opts.ChannelBufferSize, opts.NumWorkers).Base
	default:
		fmt.Fprintf(os.Stderr, "Unknown operation %q\n", opts.Operation)
		os.Exit(1)
	}
	if opts.RequeueTimeout > 0 {
		base.Settings.RequeueTimeout = opts.RequeueTimeout
	}

	base.Start()
	if err := base.RegisterAsNsqConsumer(); err != nil {
		_context.Logger.Fatalf("Could not register as NSQ consumer: %v", err)
	}
	<-base.Done()
	_context.Logger.Info("Worker stopped")
}

func printHelp() {
	message := `
pigeon_worker consumes one NSQ topic. With -operation archive it packages
each registration it is sent as a bag, uploads it to the Internet Archive
and tells the OSF where it went. With -operation metadata it pushes
metadata changes to items that are already archived.

Job results are stored in Redis, where pigeon_server reports on them.
`
	fmt.Println(message)
	cli.PrintDefaults()
	fmt.Println(cli.EnvMessage)
}
