package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global flags
	verbose bool
	cfgFile string

	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "otkbd",
	Short: "OpenTraceKBD - keyboard PCB placement and routing",
	Long: `OpenTraceKBD (otkbd) places keyboard switch and diode footprints on
a KiCad PCB from a keyboard-layout-editor layout, routes the
switch-diode pairs and the key matrix, and renders board previews.

Examples:
  otkbd place board.kicad_pcb --layout layout.json           # Place switches
  otkbd place board.kicad_pcb --layout layout.json --route   # Place and route
  otkbd pairs board.kicad_pcb                                # Preview pairing
  otkbd render board.kicad_pcb --out board.svg               # SVG preview`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		})
		if err := initConfig(); err != nil {
			return err
		}
		return applyConfig(cmd)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default otkbd.yaml in . or the user config dir)")
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("otkbd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "otkbd"))
		}
	}
	viper.SetEnvPrefix("OTKBD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// No config file is fine; flags and env still apply.
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	logger.Debug("using config file", "path", viper.ConfigFileUsed())
	return nil
}

// applyConfig backfills unset flags from config and environment, so
// precedence is flag, then config, then flag default.
func applyConfig(cmd *cobra.Command) error {
	var applyErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(viper.GetString(f.Name)); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("config value for --%s: %w", f.Name, err)
		}
	})
	return applyErr
}
