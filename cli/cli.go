package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vx-labs/botrace/membership"
	"github.com/vx-labs/botrace/metrics"
	"github.com/vx-labs/botrace/network"
)

const (
	FLAG_NAME_CLUSTER = "cluster"
	ENV_PREFIX        = "botrace"
)

var version = "dev"

func Version() string {
	return version
}

// NewConfig returns a viper instance reading BOTRACE_* environment variables.
func NewConfig() *viper.Viper {
	config := viper.New()
	config.SetEnvPrefix(ENV_PREFIX)
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	return config
}

func AddClusterFlags(flags *pflag.FlagSet, config *viper.Viper, defaultPort int) {
	flags.StringSliceP("join", "j", []string{}, "Join the cluster using these nodes")
	config.BindPFlag("join", flags.Lookup("join"))

	flags.BoolP("use-consul", "", false, "Discover other nodes using Consul")
	config.BindPFlag("use-consul", flags.Lookup("use-consul"))

	flags.StringP("consul-service", "", "botrace", "Consul service name nodes are registered under")
	config.BindPFlag("consul-service", flags.Lookup("consul-service"))

	network.RegisterFlagsForService(flags, config, FLAG_NAME_CLUSTER, defaultPort)
}

type Context struct {
	ID      string
	Logger  *zap.Logger
	Config  *viper.Viper
	Mesh    *membership.Mesh
	NetConf network.Configuration
}

func newLogger(id string) (*zap.Logger, error) {
	fields := []zap.Field{
		zap.String("node_id", id), zap.String("version", Version()),
	}
	opts := []zap.Option{
		zap.Fields(fields...),
	}
	if os.Getenv("ENABLE_PRETTY_LOG") == "true" {
		return zap.NewDevelopment(opts...)
	}
	return zap.NewProduction(opts...)
}

// Bootstrap creates the node logger and its cluster mesh. The mesh is not joined yet.
func Bootstrap(config *viper.Viper, role string) (*Context, error) {
	id := uuid.New().String()
	logger, err := newLogger(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}
	netConf, err := network.ConfigurationFromFlags(config, FLAG_NAME_CLUSTER)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded service config",
		zap.String("service_kind", FLAG_NAME_CLUSTER),
		zap.String("bind_address", netConf.BindAddress),
		zap.Int("bind_port", netConf.BindPort),
		zap.String("advertised_address", netConf.AdvertisedAddress),
		zap.Int("advertised_port", netConf.AdvertisedPort),
	)
	mesh, err := membership.NewMesh(logger, membership.MeshConfig{
		ID:            id,
		Role:          role,
		BindAddress:   netConf.BindAddress,
		BindPort:      netConf.BindPort,
		AdvertiseAddr: netConf.AdvertisedAddress,
		AdvertisePort: netConf.AdvertisedPort,
	})
	if err != nil {
		return nil, err
	}
	return &Context{
		ID:      id,
		Logger:  logger,
		Config:  config,
		Mesh:    mesh,
		NetConf: netConf,
	}, nil
}

// Seeds returns the --join nodes, plus the Consul registered ones when enabled.
func (ctx *Context) Seeds() []string {
	nodes := ctx.Config.GetStringSlice("join")
	if !ctx.Config.GetBool("use-consul") {
		return nodes
	}
	consulAPI, err := consul.NewClient(consul.DefaultConfig())
	if err != nil {
		ctx.Logger.Error("failed to connect to consul", zap.Error(err))
		return nodes
	}
	peers, err := membership.ConsulSeeds(consulAPI, ctx.Config.GetString("consul-service"),
		ctx.NetConf.AdvertisedAddress, ctx.NetConf.AdvertisedPort, ctx.Logger)
	if err != nil {
		ctx.Logger.Error("failed to discover nodes using consul", zap.Error(err))
		return nodes
	}
	return append(nodes, peers...)
}

func (ctx *Context) JoinCluster(c context.Context) error {
	seeds := ctx.Seeds()
	if len(seeds) == 0 {
		ctx.Logger.Info("not joining membership cluster as no node were provided")
		return nil
	}
	return ctx.Mesh.Join(c, seeds)
}

type HealthChecker interface {
	Health() string
}

// ServeHTTPHealth exposes /health and /metrics. It blocks until the listener fails.
func ServeHTTPHealth(logger *zap.Logger, port int, checkers ...HealthChecker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", healthHandler(checkers...))
	err := http.ListenAndServe(fmt.Sprintf("[::]:%d", port), mux)
	if err != nil {
		logger.Error("failed to run healthcheck endpoint", zap.Error(err))
	}
}

// healthHandler reports the worst status among checkers: 500 if any is critical,
// 429 if any is in warning, 200 otherwise.
func healthHandler(checkers ...HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		for _, checker := range checkers {
			switch checker.Health() {
			case "critical":
				w.WriteHeader(http.StatusInternalServerError)
				return
			case "warning":
				status = http.StatusTooManyRequests
			}
		}
		w.WriteHeader(status)
	})
}

// WaitForSignal blocks until a termination signal is received or done is closed.
func WaitForSignal(logger *zap.Logger, done <-chan struct{}) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sigc)
	select {
	case <-sigc:
		logger.Info("received termination signal")
	case <-done:
	}
}
