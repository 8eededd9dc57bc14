package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/download"
)

var (
	downloadFormat string
	downloadOut    string
)

var downloadCmd = &cobra.Command{
	Use:   "download <dataset>",
	Short: "Stream a dataset's processed CSV as CSV or point GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := download.ParseFormat(downloadFormat)
		if err != nil {
			return err
		}
		svc, err := initServices("download")
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if downloadOut != "" && downloadOut != "-" {
			f, err := os.Create(downloadOut)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		stats, err := svc.Downloads.Run(ctx, w, args[0], format)
		if err != nil {
			if downloadOut != "" && downloadOut != "-" {
				_ = os.Remove(downloadOut)
			}
			return err
		}

		zap.L().Info("download complete",
			zap.String("dataset", args[0]),
			zap.String("format", string(format)),
			zap.Int("features", stats.Features),
			zap.Int64("bytes", stats.Bytes),
		)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFormat, "format", "csv", "output format: csv or geojson")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(downloadCmd)
}
