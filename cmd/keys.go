package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
	"github.com/spf13/cobra"
)

var (
	outputFile string
	keyCount   int
)

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	keysCmd.Flags().IntVarP(&keyCount, "count", "n", 10, "number of keys to generate")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates random temporary exposure keys for seeding a test server
var keysCmd = &cobra.Command{
	Use:   "genkeys",
	Short: "Generate random diagnosis keys",
	Long:  "Generate random temporary exposure keys in the submit wire shape, for seeding a test key server",
	Run: func(cmd *cobra.Command, args []string) {
		rollingStart := uint32(time.Now().Unix() / 600)

		keys := make([]map[string]interface{}, 0, keyCount)
		for i := 0; i < keyCount; i++ {
			keyData := make([]byte, types.KeySize)
			_, err := rand.Read(keyData)
			check(err)
			keys = append(keys, map[string]interface{}{
				"d": keyData,
				"r": rollingStart - uint32(i*144), // one day of intervals apart
				"l": i % 9,
			})
		}
		fileBytes, err := json.MarshalIndent(map[string]interface{}{"keys": keys}, "", "  ")
		check(err)

		if outputFile != "" {
			// fail if file already exists
			if _, sErr := os.Stat(outputFile); !errors.Is(sErr, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", outputFile)
				os.Exit(1)
			}
			err = os.WriteFile(outputFile, fileBytes, 0644)
			check(err)
			fmt.Printf("Output file: %s\n", outputFile)
		} else {
			fmt.Printf("\n%s\n", string(fileBytes))
		}
	},
}
