package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/ondemand/apigateway"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/authsvc/pkg/authendpoint"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
	"github.com/ichigozero/ondemand/authsvc/pkg/authtransport"
	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/ichigozero/ondemand/tasksvc/db/gorm"
	"github.com/ichigozero/ondemand/tasksvc/inmem"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskservice"
	"github.com/ichigozero/ondemand/tasksvc/pkg/tasktransport"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twinj/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	defaultBcryptCost, err := getEnvAsInt("AUTH_BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fs := flag.NewFlagSet("ondemand", flag.ExitOnError)
	var (
		httpAddr = fs.String(
			"http.addr",
			getEnv("HTTP_ADDR", ":5000"),
			"HTTP listen address",
		)
		databaseURL = fs.String(
			"database.url",
			getEnv("DATABASE_URL", ""),
			"Database URL (empty for in-memory sqlite, sqlite://<path>, postgres://..., or inmem)",
		)
		authUsers = fs.String(
			"auth.users",
			getEnv("AUTH_USERS", authsvc.DefaultUsers),
			"comma separated user:password pairs accepted by /login",
		)
		authToken = fs.String(
			"auth.token",
			getEnv("AUTH_TOKEN", authsvc.DefaultToken),
			"bearer token issued on login",
		)
		bcryptCost = fs.Int(
			"auth.bcrypt-cost",
			defaultBcryptCost,
			"bcrypt cost used to hash configured passwords",
		)
		consulAddr = fs.String(
			"consul.addr",
			getEnv("CONSUL_ADDR", ""),
			"Consul agent address; registration is skipped when empty",
		)
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var config authsvc.Config
	{
		users, err := authsvc.ParseUsers(*authUsers)
		if err != nil {
			logger.Log("during", "ParseUsers", "err", err)
			os.Exit(1)
		}
		config = authsvc.Config{Users: users, Token: *authToken}
	}

	var taskRepository tasksvc.TaskRepository
	{
		if *databaseURL == "inmem" {
			taskRepository = inmem.NewTaskRepository()
		} else {
			db, err := gorm.Open(*databaseURL)
			if err != nil {
				logger.Log("during", "Open", "err", err)
				os.Exit(1)
			}

			repo := gorm.NewTaskRepository(db)
			if err := repo.Migrate(context.Background()); err != nil {
				logger.Log("during", "Migrate", "err", err)
				os.Exit(1)
			}
			taskRepository = repo
		}
	}

	var (
		requestCount = kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "ondemand",
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, []string{"method", "error"})
		requestLatency = kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "ondemand",
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, []string{"method", "error"})
	)

	var authHandler http.Handler
	{
		store, err := authsvc.NewCredentialStore(config.Users, *bcryptCost)
		if err != nil {
			logger.Log("during", "NewCredentialStore", "err", err)
			os.Exit(1)
		}

		service := authservice.New(store, config.Token, log.With(logger, "component", "authsvc"))
		service = authservice.InstrumentingMiddleware(requestCount, requestLatency)(service)

		endpoints := authendpoint.New(service, logger)
		authHandler = authtransport.NewHTTPHandler(endpoints, logger)
	}

	var taskHandler http.Handler
	{
		authenticator, err := authsvc.NewAuthenticator(config.Token)
		if err != nil {
			logger.Log("during", "NewAuthenticator", "err", err)
			os.Exit(1)
		}

		service := taskservice.New(taskRepository, log.With(logger, "component", "tasksvc"))
		service = taskservice.InstrumentingMiddleware(requestCount, requestLatency)(service)

		endpoints := taskendpoint.New(service, logger)
		taskHandler = tasktransport.NewHTTPHandler(endpoints, authenticator, logger)
	}

	httpHandler := apigateway.NewHTTPHandler(authHandler, taskHandler, promhttp.Handler(), logger)

	if *consulAddr != "" {
		registrar, err := newRegistrar(*consulAddr, *httpAddr, logger)
		if err != nil {
			logger.Log("during", "Register", "err", err)
			os.Exit(1)
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	var g group.Group
	{
		// The HTTP listener mounts the Go kit HTTP handler we created.
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", *httpAddr)
			return http.Serve(httpListener, httpHandler)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

func newRegistrar(consulAddr, httpAddr string, logger log.Logger) (*consulsd.Registrar, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = consulAddr

	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	asr := &api.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    "ondemand",
		Address: host,
		Port:    p,
	}

	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), asr, logger), nil
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

// getEnvAsInt returns fallback when key is unset and an error when it is
// set to something other than an integer.
func getEnvAsInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}

	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want an integer", key, value)
	}
	return v, nil
}
