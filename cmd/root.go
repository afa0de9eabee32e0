/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azure-exposure-reporter",
	Short: "Audit the network exposure of resources in an Azure tenant",
	Long: `azure-exposure-reporter inventories the resources of an Azure tenant and
reports how each one is reachable over the network: open to all networks,
restricted to whitelisted IPs and VNets, exposed on private endpoints, or
fully private. Results are exported as one CSV overview per resource type.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.azure-exposure-reporter.yaml)")
	rootCmd.PersistentFlags().String("verbosity", "info", "Log verbosity (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().Bool("structuredLogs", false, "Emit logs as JSON")
	viper.BindPFlag("structuredLogs", rootCmd.PersistentFlags().Lookup("structuredLogs"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".azure-exposure-reporter")
	}

	viper.AutomaticEnv()

	viper.ReadInConfig()
}
