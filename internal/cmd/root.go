package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "noisetex",
	Short: "A procedural noise texture generator",
	Long: `noisetex synthesizes tileable textures from layered procedural noise.

Fractal and Gaussian-smoothed noise layers are weighted, composited and colored
either through a gradient of color stops or per-channel multipliers. Textures
can be rendered once from the command line or edited live over HTTP.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Int("width", 512, "Texture width in pixels")
	rootCmd.PersistentFlags().Int("height", 512, "Texture height in pixels")
	rootCmd.PersistentFlags().String("backend", "parallel", "Noise backend (parallel, serial)")
	rootCmd.PersistentFlags().Int("workers", 0, "Parallel backend workers (default: number of CPUs)")
	rootCmd.PersistentFlags().String("preset", presetLayered, "Starting preset (layered, fractal, bands)")
	rootCmd.PersistentFlags().Int64("seed", 0, "Base seed for preset layers")
	rootCmd.PersistentFlags().String("png-compression", "default", "PNG compression (default, speed, best, none)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"verbose", "verbose"},
		{"width", "width"},
		{"height", "height"},
		{"backend", "backend"},
		{"workers", "workers"},
		{"preset", "preset"},
		{"seed", "seed"},
		{"png_compression", "png-compression"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, rootCmd.PersistentFlags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NOISETEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
