package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/texture"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a texture once and export it",
	Long: `Render builds a texture from a preset (optionally overridden by the config
file) and writes it in a format chosen by the output extension: .png, .tif/.tiff,
.bmp or .mbtiles.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", texture.DefaultFilename, "Output file (.png, .tif, .tiff, .bmp, .mbtiles)")
	renderCmd.Flags().String("mapping", "", "Override the preset mapping (gradient, channels)")
	renderCmd.Flags().StringSlice("multipliers", nil, "Override channel multipliers as r,g,b")
	renderCmd.Flags().Int("tile-preview", 0, "Also write an NxN tiled preview next to the output (0 disables)")
	renderCmd.Flags().Bool("progress", false, "Show a progress bar while fields are computed")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.output", "output"},
		{"render.mapping", "mapping"},
		{"render.multipliers", "multipliers"},
		{"render.tile_preview", "tile-preview"},
		{"render.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	output := viper.GetString("render.output")
	tilePreview := viper.GetInt("render.tile_preview")
	showProgress := viper.GetBool("render.progress")

	cfg, err := engineConfigFromViper(viper.GetViper(), "render")
	if err != nil {
		return err
	}
	if _, err := texture.FormatForPath(output); err != nil {
		return err
	}

	logger.Info("Starting render",
		"preset", viper.GetString("preset"),
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"layers", len(cfg.Layers),
		"mapping", cfg.Mapping,
		"backend", cfg.Backend,
		"output", output,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress := worker.NewProgress("bands", showProgress)
	start := time.Now()

	eng, err := engine.NewContext(ctx, cfg, engine.WithLogger(logger), engine.WithProgress(progress.Callback()))
	progress.Done()
	if err != nil {
		return fmt.Errorf("failed to render texture: %w", err)
	}
	logger.Debug(progress.Summary())
	logger.Info("Texture rendered", "duration", time.Since(start).Round(time.Millisecond))

	if err := eng.Export(output); err != nil {
		return fmt.Errorf("failed to export texture: %w", err)
	}

	if tilePreview > 1 {
		path, err := writeTilePreview(eng.Image(), output, tilePreview, cfg.Export)
		if err != nil {
			return err
		}
		logger.Info("Tile preview written", "path", path, "repeat", tilePreview)
	}

	return nil
}

// writeTilePreview repeats img n times in each direction and writes it as
// <output stem>_tiled<ext>. Seams in a non-tileable texture show along the
// repeat boundaries.
func writeTilePreview(img *texture.Image, output string, n int, opts texture.ExportOptions) (string, error) {
	tiled, err := texture.Tile(img, img.W*n, img.H*n, 0, 0)
	if err != nil {
		return "", fmt.Errorf("failed to tile preview: %w", err)
	}

	ext := filepath.Ext(output)
	if strings.EqualFold(ext, ".mbtiles") || ext == "" {
		ext = ".png"
	}
	path := strings.TrimSuffix(output, filepath.Ext(output)) + "_tiled" + ext

	if err := texture.WriteFile(path, tiled, opts); err != nil {
		return "", fmt.Errorf("failed to write tile preview: %w", err)
	}
	logger.Debug("Seam error", "value", texture.SeamError(img))
	return path, nil
}
