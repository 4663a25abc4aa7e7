package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/botrace/board"
	"github.com/vx-labs/botrace/cli"
	"github.com/vx-labs/botrace/membership"
	"github.com/vx-labs/botrace/race"
	"github.com/vx-labs/botrace/supervisor"
	"go.uber.org/zap"
)

func supervisorConfig(config *viper.Viper) supervisor.Config {
	c := supervisor.DefaultConfig()
	c.Layout = config.GetString("layout")
	c.LayoutFile = config.GetString("layout-file")
	c.Seed = config.GetInt64("seed")
	c.Race.TickInterval = config.GetDuration("tick-interval")
	c.Race.MailboxSize = config.GetInt("mailbox-size")
	return c
}

func remoteCommandHandler(logger *zap.Logger, handle race.Handle) func([]byte) {
	return func(payload []byte) {
		cmd, err := race.ParseCommand(string(payload))
		if err != nil {
			logger.Warn("dropped malformed control message", zap.Error(err))
			return
		}
		if err := handle.Tell(cmd); err != nil {
			logger.Warn("failed to deliver remote command", zap.String("command", cmd.String()), zap.Error(err))
			return
		}
		logger.Debug("remote command delivered", zap.String("command", cmd.String()))
	}
}

func run(config *viper.Viper) error {
	ctx, err := cli.Bootstrap(config, membership.RoleBoard)
	if err != nil {
		return err
	}
	logger := ctx.Logger
	defer logger.Sync()

	sup, err := supervisor.New(logger, supervisorConfig(config), ctx.Mesh)
	if err != nil {
		logger.Error("failed to load board", zap.Error(err))
		ctx.Mesh.Shutdown()
		return err
	}
	headless := config.GetBool("headless")
	if !headless {
		sup.Board().Register(newRenderer(os.Stdout, sup.Board()))
	}
	sup.Start()
	handle := sup.Controller()
	ctx.Mesh.OnMessage(remoteCommandHandler(logger, handle))

	go cli.ServeHTTPHealth(logger, config.GetInt("health-port"), ctx.Mesh, sup)

	joinCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := ctx.JoinCluster(joinCtx); err != nil {
		logger.Warn("failed to join membership cluster", zap.Error(err))
	}
	cancel()
	fmt.Printf("Use the following address to join the cluster: %s:%d\n", ctx.NetConf.AdvertisedAddress, ctx.NetConf.AdvertisedPort)

	done := make(chan struct{})
	if !headless {
		go func() {
			defer close(done)
			runMenu(os.Stdout, handle, sup.Board())
		}()
	}
	cli.WaitForSignal(logger, done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop race supervisor", zap.Error(err))
	}
	if err := ctx.Mesh.Shutdown(); err != nil {
		logger.Warn("failed to leave cluster", zap.Error(err))
	}
	logger.Info("board stopped")
	return nil
}

func main() {
	config := cli.NewConfig()
	root := &cobra.Command{
		Use:   "board",
		Short: "Run a race board node",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(config); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
	root.Flags().StringP("layout", "l", board.DefaultLayout, fmt.Sprintf("Race on this predefined layout (%s)", strings.Join(board.Layouts(), ", ")))
	config.BindPFlag("layout", root.Flags().Lookup("layout"))
	root.Flags().StringP("layout-file", "", "", "Race on the layout stored in this file instead of a predefined one")
	config.BindPFlag("layout-file", root.Flags().Lookup("layout-file"))
	root.Flags().Int64P("seed", "", 1, "Seed of the bots random source")
	config.BindPFlag("seed", root.Flags().Lookup("seed"))
	root.Flags().DurationP("tick-interval", "", time.Second, "Advance the race at this interval while running. 0 disables automatic advances")
	config.BindPFlag("tick-interval", root.Flags().Lookup("tick-interval"))
	root.Flags().IntP("mailbox-size", "", race.DefaultConfig().MailboxSize, "Race controller mailbox capacity")
	config.BindPFlag("mailbox-size", root.Flags().Lookup("mailbox-size"))
	root.Flags().IntP("health-port", "", 9000, "Serve /health and /metrics on this port")
	config.BindPFlag("health-port", root.Flags().Lookup("health-port"))
	root.Flags().BoolP("headless", "", false, "Do not render the board nor display the menu")
	config.BindPFlag("headless", root.Flags().Lookup("headless"))
	cli.AddClusterFlags(root.Flags(), config, 3500)
	root.Execute()
}
