package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var stateConfigFile string

func init() {
	stateCmd.Flags().StringVarP(&stateConfigFile, "config", "c", "conf.yaml", "configuration file path")
	rootCmd.AddCommand(stateCmd)
}

// stateCmd dumps the persisted sync state for inspection
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show persisted sync state",
	Long:  "Show the persisted watermark, token expiry and auto-resume flag",
	Run: func(cmd *cobra.Command, args []string) {
		err := global.LoadConfig(stateConfigFile)
		check(err)

		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", global.Conf.Redis.Host, global.Conf.Redis.Port),
			Username: global.Conf.Redis.Username,
			Password: global.Conf.Redis.Password,
			DB:       0,
		})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		syncState := state.NewSyncState(state.NewRedisStore(client))

		lastFetch, err := syncState.LastSuccessfulFetch(ctx)
		check(err)
		earliestNext, err := syncState.EarliestNextFetch(ctx)
		check(err)
		token, err := syncState.Token(ctx)
		check(err)
		autoResume, err := syncState.AutoResume(ctx)
		check(err)

		out := map[string]interface{}{
			"lastSuccessfulFetch":  lastFetch,
			"earliestNextFetch":    earliestNext,
			"autoResume":           autoResume,
			"tokenHeld":            token != nil,
		}
		if token != nil {
			out["tokenExpiresAt"] = token.ExpiresAt
		}
		rendered, err := json.MarshalIndent(out, "", "  ")
		check(err)
		fmt.Printf("%s\n", string(rendered))
	},
}
