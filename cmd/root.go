package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/tabfetch/internal/app"
	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/config"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/session"
	"github.com/zjrosen/tabfetch/internal/ui/styles"
	"github.com/zjrosen/tabfetch/internal/watcher"
)

func init() {
	// Query the terminal background before Bubble Tea owns stdin, otherwise
	// the OSC 11 reply can land in the address bar.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "tabfetch [url...]",
	Short:   "A tabbed terminal page fetcher",
	Long:    `A terminal user interface that opens pages in tabs, fetching each page and its favicon in the background.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tabfetch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging and the in-app log view")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .tabfetch/config.yaml (current directory)
		// 2. ~/.config/tabfetch/config.yaml (user config)
		if _, err := os.Stat(config.LocalConfigPath); err == nil {
			viper.SetConfigFile(config.LocalConfigPath)
		} else {
			viper.AddConfigPath(filepath.Dir(config.UserConfigPath()))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .tabfetch/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(config.LocalConfigPath); writeErr == nil {
				viper.SetConfigFile(config.LocalConfigPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(_ *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	debugMode := debugEnabled(cfg)

	urls, err := normalizeAll(args)
	if err != nil {
		return err
	}

	styles.ApplyTheme(cfg.Theme.Accent, cfg.Theme.Muted)
	zone.NewGlobal()

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Store the config file path for saving ui toggles
	configFilePath := viper.ConfigFileUsed()
	if configFilePath == "" {
		configFilePath = config.LocalConfigPath
	}

	var w *watcher.Watcher
	if used := viper.ConfigFileUsed(); used != "" {
		w, err = watcher.New(watcher.DefaultConfig(used))
		if err != nil {
			log.Warn(log.CatWatcher, "Config watcher unavailable", "error", err)
		}
	}

	model := app.New(app.Options{
		Config:     cfg,
		ConfigPath: configFilePath,
		Bridge:     rt.bridge,
		Jobs:       rt.runner,
		Watcher:    w,
		DebugMode:  debugMode,
	})
	defer model.Close()

	if w != nil {
		if err := w.Start(); err != nil {
			log.Warn(log.CatWatcher, "Config watcher failed to start", "error", err)
		}
		defer func() { _ = w.Stop() }()
	}

	for _, u := range urls {
		if err := rt.bridge.Send(browser.SessionOpenRequested{ID: session.NewID(), URL: u}); err != nil {
			return fmt.Errorf("queueing %s: %w", u, err)
		}
	}

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

func normalizeAll(args []string) ([]string, error) {
	urls := make([]string, 0, len(args))
	for _, raw := range args {
		u, err := app.NormalizeURL(raw)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
