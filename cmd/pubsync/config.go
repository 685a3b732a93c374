package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/juyoungml/pubsync/internal/config"
)

var configInitProfile string

func init() {
	configInitCmd.Flags().StringVar(&configInitProfile, "profile", "", "Profile id to write into the new config")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging pubsync.yml (or the
global config) with the built-in defaults and environment overrides.

Environment:
  PUBSYNC_PROFILE_ID  Profile id
  PUBSYNC_DATA_DIR    Backup directory
  PUBSYNC_TARGET      Generated file`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter pubsync.yml in the current directory",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Source          string `json:"source,omitempty"`
	ProfileID       string `json:"profile_id"`
	BaseURL         string `json:"base_url"`
	Language        string `json:"language"`
	MaxPublications int    `json:"max_publications"`
	RequestDelay    string `json:"request_delay"`
	Timeout         string `json:"timeout"`
	DataDir         string `json:"data_dir"`
	TargetFile      string `json:"target_file"`
	Section         string `json:"section"`
	Index           string `json:"index"`
	CVSource        string `json:"cv_source"`
	CVOutput        string `json:"cv_output"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	if humanOutput {
		if cfg.Path != "" {
			fmt.Printf("# loaded from %s\n", cfg.Path)
		} else {
			fmt.Println("# no config file found, using defaults")
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		fmt.Print(string(out))
		return nil
	}

	outputJSON(ConfigResponse{
		Source:          cfg.Path,
		ProfileID:       cfg.ProfileID,
		BaseURL:         cfg.BaseURL,
		Language:        cfg.Language,
		MaxPublications: cfg.MaxPublications,
		RequestDelay:    cfg.RequestDelay.String(),
		Timeout:         cfg.Timeout.String(),
		DataDir:         cfg.DataDir,
		TargetFile:      cfg.TargetFile,
		Section:         cfg.Section,
		Index:           cfg.Index(),
		CVSource:        cfg.CV.Source,
		CVOutput:        cfg.CV.Output,
	})
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	path := filepath.Join(cwd, config.ConfigFile)
	if _, err := os.Stat(path); err == nil {
		exitWithError(ExitError, "%s already exists", path)
	}

	cfg := config.Default()
	cfg.ProfileID = configInitProfile
	out, err := yaml.Marshal(cfg)
	if err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		exitWithError(ExitWriteFailure, "writing config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s\n", path)
	} else {
		outputJSON(StatusResponse{Status: "created", Path: path})
	}
	return nil
}
