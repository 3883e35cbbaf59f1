package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/synqronlabs/zkmail/config"
)

func newRootCmd() *cobra.Command {
	var (
		configFile string
		domain     string
	)

	root := &cobra.Command{
		Use:          "zkmail",
		Short:        "Prove an email was DKIM-signed by a domain",
		Long:         `zkmail proves that an email was DKIM-signed by a given domain and extracts payment facts from it, publishing only the facts and a receipt that anyone can check.`,
		Version:      "0.1.0",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVarP(&domain, "domain", "d", "", "signing domain (overrides config)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if domain != "" {
			cfg.Domain = domain
		}
		return cfg, nil
	}

	root.AddCommand(
		newProveCmd(load),
		newVerifyCmd(load),
		newServeCmd(load),
		newSignCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
