package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/server"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/CenterForOpenScience/pigeon-services/util/cli"
)

func main() {
	help := false
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.Parse()
	if help {
		printHelp()
		os.Exit(0)
	}

	_context := services.NewContext(common.NewConfig())
	s := server.NewServer(
		_context.Config,
		_context.NSQClient,
		_context.RedisClient,
		_context.Logger,
		_context.LogFile)
	if err := s.ListenAndServe(); err != nil {
		_context.Logger.Fatalf("Server stopped: %v", err)
	}
}

func printHelp() {
	message := `
pigeon_server is the HTTP front end the OSF calls. It queues archive and
metadata jobs in NSQ for pigeon_worker and reports job results from Redis.

Routes:
    GET  /                  liveness check
    GET  /logs              this server's log file
    GET  /archive/{guid}    queue an archive job (POST works too)
    POST /metadata/{guid}   queue a metadata sync; the body is a JSON object
    GET  /status/{guid}     results of the last archive and metadata jobs

It listens on HOST:PORT from the config.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
