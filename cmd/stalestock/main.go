package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/export"
	"github.com/andresuchdata/stalestock/pkg/logger"
)

func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "File encoding (auto, utf-8, gbk, gb2312, latin1, cp1252, iso-8859-1)",
			Value: "auto",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Only include rows of this store",
		},
		&cli.StringFlag{
			Name:  "category",
			Usage: "Only include rows of this product category",
		},
	}
}

func newApp(cfg *config.Config, out io.Writer) *cli.App {
	cmd := &commands{cfg: cfg, out: out}

	return &cli.App{
		Name:      "stalestock",
		Usage:     "Analyze month-over-month stale inventory exports",
		Writer:    out,
		ErrWriter: out,
		Before:    cmd.init,
		// main decides the exit code
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "Print the summary and text report of a CSV/XLSX file",
				ArgsUsage: "FILE",
				Flags: append(viewFlags(),
					&cli.IntFlag{Name: "top", Usage: "Number of products in the report", Value: 5},
				),
				Action: cmd.analyze,
			},
			{
				Name:      "export",
				Usage:     "Write the filtered rows with derived columns as CSV or XLSX",
				ArgsUsage: "FILE",
				Flags: append(viewFlags(),
					&cli.StringFlag{Name: "out", Usage: "Output path; .xlsx writes a workbook (default: timestamped csv)"},
				),
				Action: cmd.export,
			},
			{
				Name:      "chart",
				Usage:     "Render a PNG chart",
				ArgsUsage: "FILE",
				Flags: append(viewFlags(),
					&cli.StringFlag{Name: "kind", Usage: fmt.Sprintf("Chart kind %v", export.ChartKinds()), Value: export.ChartTrend},
					&cli.StringFlag{Name: "group-by", Usage: "Trend dimension (产品类别, 店铺, 日期)"},
					&cli.IntFlag{Name: "n", Usage: "Number of bars for ranking charts", Value: 10},
					&cli.IntFlag{Name: "bins", Usage: "Histogram bins (0 picks automatically)"},
					&cli.StringFlag{Name: "out", Usage: "Output PNG path", Required: true},
				),
				Action: cmd.chart,
			},
			{
				Name:      "batch",
				Usage:     "Process every CSV/XLSX file of a directory",
				ArgsUsage: "DIR",
				Flags: append(viewFlags(),
					&cli.StringFlag{Name: "out-dir", Usage: "Directory for exports and reports", Value: "./out"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent files", Value: 4},
				),
				Action: cmd.batch,
			},
			{
				Name:      "fetch",
				Usage:     "Download a file from object storage and analyze it",
				ArgsUsage: "KEY",
				Flags: append(viewFlags(),
					&cli.StringFlag{Name: "dest", Usage: "Download directory", Value: "./data/downloads"},
					&cli.IntFlag{Name: "top", Usage: "Number of products in the report", Value: 5},
				),
				Action: cmd.fetch,
			},
			{
				Name:      "drive",
				Usage:     "Download a Google Drive folder and process it as a batch",
				ArgsUsage: "FOLDER_PATH",
				Flags: append(viewFlags(),
					&cli.StringFlag{Name: "folder-id", Usage: "Folder ID (overrides FOLDER_PATH)"},
					&cli.StringFlag{Name: "dest", Usage: "Download directory", Value: "./data/drive"},
					&cli.StringFlag{Name: "out-dir", Usage: "Directory for exports and reports", Value: "./out"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent files", Value: 4},
				),
				Action: cmd.drive,
			},
			{
				Name:   "purge",
				Usage:  "Delete every dataset held in the shared redis session cache",
				Action: cmd.purge,
			},
		},
	}
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(cfg, os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		stop()
		code := 1
		if exitErr, ok := err.(cli.ExitCoder); ok {
			code = exitErr.ExitCode()
		}
		os.Exit(code)
	}
}
