package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "keywatch",
	Short:   "Keywatch is a privacy-preserving exposure notification client",
	Long:    `Keywatch exchanges anonymized diagnosis keys with a key server, merges the server's feed into a local store and turns device-level match results into durable exposure records.`,
	Version: "1.0.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
