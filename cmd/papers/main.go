// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the papers CLI: full-text acquisition
// for scholarly works, extraction backups to Zotero, and the MCP server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/logging"
	"github.com/pdiddy/papers/internal/secrets"
	"github.com/pdiddy/papers/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "papers/0.1"
)

// Loaded by the root command before any subcommand runs.
var (
	cfg    types.PipelineConfig
	logger = zap.NewNop()
)

// envBindings maps config keys to the unprefixed variables people already
// have set for these services. PAPERS_<KEY> works for every key.
var envBindings = map[string]string{
	"zotero.user_id":   "ZOTERO_USER_ID",
	"zotero.api_key":   "ZOTERO_API_KEY",
	"zotero.data_dir":  "ZOTERO_DATA_DIR",
	"openalex.api_key": "OPENALEX_API_KEY",
	"openalex.mailto":  "OPENALEX_EMAIL",
	"datalab.api_key":  "DATALAB_API_KEY",
}

// defaults registers every key, so AutomaticEnv sees them on Unmarshal.
// Zero durations and counts mean the package default.
var defaults = map[string]any{
	"http.timeout":           defaultTimeout,
	"http.user_agent":        defaultUserAgent,
	"http.max_retries":       5,
	"http.allowed_hosts":     []string{},
	"cache.dir":              "",
	"zotero.base_url":        "",
	"datalab.poll_interval":  time.Duration(0),
	"extraction.backend":     string(types.BackendPDFText),
	"fallback.initial_delay": time.Duration(0),
	"fallback.interval":      time.Duration(0),
	"fallback.max_retries":   0,
	"log_level":              logging.DefaultLevel,
}

var rootCmd = &cobra.Command{
	Use:   "papers",
	Short: "Fetch, extract, and back up the full text of scholarly papers",
	Long: `papers resolves a work identifier (OpenAlex ID, DOI, or arXiv ID) to its
full text. It looks for the PDF in your Zotero library, the open-access
locations OpenAlex knows about, and the OpenAlex content API, converts the
first PDF it finds, and caches the result.

Cached extractions can be backed up to Zotero as attachments on the paper's
parent item and restored on another machine. papers serve exposes the same
acquisition as an MCP tool that asks the client for help when no PDF is found.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogLevel)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", zap.String("path", f))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./papers.yaml or ~/.config/papers/papers.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "diagnostic log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("papers")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "papers"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "papers"))
		}
	}

	viper.SetEnvPrefix("PAPERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, v := range defaults {
		viper.SetDefault(key, v)
	}
	for key, env := range envBindings {
		prefixed := "PAPERS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(key, prefixed, env)
	}

	_ = viper.ReadInConfig()
}

// loadConfig unmarshals viper state and fills empty credentials from the
// .secrets directory.
func loadConfig() (types.PipelineConfig, error) {
	var c types.PipelineConfig
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("reading config: %w", err)
	}
	s, err := secrets.Load(secrets.DefaultDir)
	if err != nil {
		return c, err
	}
	secrets.Fill(s, map[string]*string{
		secrets.ZoteroAPIKey:   &c.Zotero.APIKey,
		secrets.ZoteroUserID:   &c.Zotero.UserID,
		secrets.OpenAlexAPIKey: &c.OpenAlex.APIKey,
		secrets.OpenAlexEmail:  &c.OpenAlex.Mailto,
		secrets.DatalabAPIKey:  &c.Datalab.APIKey,
	})
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
