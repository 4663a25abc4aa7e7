package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/botrace/cli"
	"github.com/vx-labs/botrace/membership"
	"github.com/vx-labs/botrace/race"
)

func connect(config *viper.Viper) (*cli.Context, error) {
	ctx, err := cli.Bootstrap(config, membership.RoleCtl)
	if err != nil {
		return nil, err
	}
	joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctx.JoinCluster(joinCtx); err != nil {
		ctx.Mesh.Shutdown()
		return nil, err
	}
	return ctx, nil
}

func Command(config *viper.Viper, cmd race.Command, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   cmd.String(),
		Short: short,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, err := connect(config)
			if err != nil {
				logrus.Fatalf("failed to join cluster: %v", err)
			}
			defer ctx.Mesh.Shutdown()
			count, err := ctx.Mesh.SendCommand(membership.RoleBoard, []byte(cmd.String()))
			if err != nil {
				logrus.Errorf("failed to send %s: %v", cmd, err)
				return
			}
			logrus.Infof("sent %s to %d board(s)", cmd, count)
		},
	}
	return c
}

func Members(config *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "members",
		Short: "List the cluster members",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, err := connect(config)
			if err != nil {
				logrus.Fatalf("failed to join cluster: %v", err)
			}
			defer ctx.Mesh.Shutdown()
			for _, member := range ctx.Mesh.Members() {
				if member.ID == ctx.ID {
					continue
				}
				fmt.Printf("%s\t%s\t%s\n", member.ID, member.Address, member.Role)
			}
		},
	}
	return c
}

func main() {
	config := cli.NewConfig()
	root := &cobra.Command{
		Use:   "boardctl",
		Short: "Control a race board through the cluster",
	}
	cli.AddClusterFlags(root.PersistentFlags(), config, 0)
	root.AddCommand(Command(config, race.StartRace, "Start the race"))
	root.AddCommand(Command(config, race.Pause, "Pause the race"))
	root.AddCommand(Command(config, race.Resume, "Resume the race"))
	root.AddCommand(Command(config, race.End, "End the race"))
	root.AddCommand(Command(config, race.AdvanceTick, "Advance the race by one step"))
	root.AddCommand(Members(config))
	root.Execute()
}
