package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keywatch/go-keywatch-client/adapter"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/services"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	submitConfigFile string
	submitKeysFile   string
)

func init() {
	submitCmd.Flags().StringVarP(&submitConfigFile, "config", "c", "conf.yaml", "configuration file path")
	submitCmd.Flags().StringVarP(&submitKeysFile, "keys", "k", "", "keys file in the genkeys output shape")
	submitCmd.MarkFlagRequired("keys")
	rootCmd.AddCommand(submitCmd)
}

// submitCmd uploads keys to the configured server, reusing the persisted
// submission identifier for resubmissions
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit diagnosis keys to the key server",
	Long:  "Upload keys from a file to the configured key server; a repeated submission references the identifier issued for the previous one",
	Run: func(cmd *cobra.Command, args []string) {
		err := global.LoadConfig(submitConfigFile)
		check(err)

		content, err := os.ReadFile(submitKeysFile)
		check(err)
		var input struct {
			Keys []struct {
				D []byte `json:"d"`
				R int64  `json:"r"`
				L int64  `json:"l"`
			} `json:"keys"`
		}
		check(json.Unmarshal(content, &input))

		keys := make([]types.TemporaryExposureKey, 0, len(input.Keys))
		for _, k := range input.Keys {
			keys = append(keys, types.TemporaryExposureKey{
				KeyData:            k.D,
				RollingStartNumber: uint32(k.R),
				TransmissionRisk:   types.RiskFromOrdinal(k.L),
			})
		}

		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", global.Conf.Redis.Host, global.Conf.Redis.Port),
			Username: global.Conf.Redis.Username,
			Password: global.Conf.Redis.Password,
			DB:       0,
		})
		defer client.Close()

		syncState := state.NewSyncState(state.NewRedisStore(client))
		authService := services.NewAuthService(syncState)

		credentials := adapter.NewReceiptCredentialSource(global.Conf.Server.ReceiptPath)
		adp, err := adapter.New(global.Conf.Server.Dialect, adapter.Config{
			AuthPath:     global.Conf.Server.AuthPath,
			KeysPath:     global.Conf.Server.KeysPath,
			SubmitPath:   global.Conf.Server.SubmitPath,
			PreferBinary: global.Conf.Server.PreferBinary,
		}, credentials)
		check(err)

		syncService := services.NewSyncService(adp, authService, global.Conf.Server.BaseURL, global.Conf.Sync.Timeout(), false)
		submissions := services.NewSubmissionService(syncService, syncState)

		ctx, cancel := context.WithTimeout(context.Background(), global.Conf.Sync.Timeout()+10*time.Second)
		defer cancel()

		identifier, err := submissions.Upload(ctx, nil, keys)
		check(err)
		fmt.Printf("submitted %d keys, identifier: %s\n", len(keys), identifier)
	},
}
