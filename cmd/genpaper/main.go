// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the genpaper CLI. It resolves inline
// citation placeholders in generated text against bibliographic catalogs and
// maintains a per-project citation store.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sadiq-codes/genpaper/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the genpaper CLI.
var rootCmd = &cobra.Command{
	Use:   "genpaper",
	Short: "Citation placeholder resolution for streamed paper generation",
	Long: `genpaper reconciles inline citation placeholders ([[CITE:kind:value]])
in generated text against bibliographic catalogs. Placeholders are resolved
to durable, project-scoped citations with stable numbering; unresolvable
placeholders degrade to readable fallback text.

Subcommands: resolve processes a finished document, generate reconciles a
live token stream, and citations inspects a project's reference list.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./genpaper.yaml or ~/.config/genpaper/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("genpaper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "genpaper"))
		}
	}

	viper.SetEnvPrefix("GENPAPER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
