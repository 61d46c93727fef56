package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/spf13/cobra"
)

var syncConfigFile string

func init() {
	syncCmd.Flags().StringVarP(&syncConfigFile, "config", "c", "conf.yaml", "configuration file path")
	rootCmd.AddCommand(syncCmd)
}

// syncCmd enqueues an immediate sync cycle on the running daemon's queue
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a sync cycle now",
	Long:  "Enqueue an immediate background sync cycle; the daemon's single-flight guard absorbs it if one is already running",
	Run: func(cmd *cobra.Command, args []string) {
		err := global.LoadConfig(syncConfigFile)
		check(err)

		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", global.Conf.Redis.Host, global.Conf.Redis.Port),
			Username: global.Conf.Redis.Username,
			Password: global.Conf.Redis.Password,
			DB:       2,
		})
		defer client.Close()

		task, err := types.NewSyncCycleTask(&types.SyncTask{Reason: "manual"})
		check(err)
		info, err := client.Enqueue(task)
		check(err)
		fmt.Printf("sync cycle enqueued: %s\n", info.ID)
	},
}
