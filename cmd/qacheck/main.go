package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	authclient "github.com/ichigozero/ondemand/authsvc/client"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
	taskclient "github.com/ichigozero/ondemand/tasksvc/client"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskservice"
)

func main() {
	fs := flag.NewFlagSet("qacheck", flag.ExitOnError)
	var (
		username = fs.String("user", getEnv("QA_USER", "qa"), "username used to log in")
		password = fs.String("pass", getEnv("QA_PASS", "123"), "password used to log in")

		consulAddr    = fs.String("consul.addr", getEnv("CONSUL_ADDR", ""), "Consul agent address; API calls are balanced over discovered instances when set")
		consulService = fs.String("consul.service", "ondemand", "service name to discover in Consul")
		retryMax      = fs.Int("retry.max", 3, "per-request retries to different instances")
		retryTimeout  = fs.Duration("retry.timeout", 5*time.Second, "per-request timeout, including retries")
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags] <base-url>")
	fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	}

	var (
		auth  authservice.Service
		tasks taskservice.Service
	)
	if *consulAddr != "" {
		consulConfig := api.DefaultConfig()
		consulConfig.Address = *consulAddr

		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			logger.Log("during", "NewClient", "err", err)
			os.Exit(1)
		}
		client := consulsd.NewClient(consulClient)

		authEndpoints, err := authclient.New(client, *consulService, logger, *retryMax, *retryTimeout)
		if err != nil {
			logger.Log("during", "authclient.New", "err", err)
			os.Exit(1)
		}
		taskEndpoints, err := taskclient.New(client, *consulService, logger, *retryMax, *retryTimeout)
		if err != nil {
			logger.Log("during", "taskclient.New", "err", err)
			os.Exit(1)
		}
		auth, tasks = authEndpoints, taskEndpoints
	}

	h, err := NewHarness(fs.Arg(0), *username, *password, auth, tasks, logger)
	if err != nil {
		logger.Log("during", "NewHarness", "err", err)
		os.Exit(1)
	}

	if err := h.Run(context.Background()); err != nil {
		os.Exit(1)
	}
	logger.Log("result", "all checks passed")
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}
