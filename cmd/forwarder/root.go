package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/config"
)

var cfgFile string
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "forwarder",
	Short: "MQTT to InfluxDB bridge for IoT sensor data",
	Long:  `forwarder subscribes to per-node MQTT topics, decodes sensor payloads and writes them as tagged points to InfluxDB and other configured sinks`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/forwarder.yaml)")
	rootCmd.PersistentFlags().Bool("version", false, "Print the version number")

	rootCmd.AddCommand(forwardCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile, forwardCmd.Flags())
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}
