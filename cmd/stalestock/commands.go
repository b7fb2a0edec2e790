package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/cache"
	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/domain"
	"github.com/andresuchdata/stalestock/internal/drive"
	"github.com/andresuchdata/stalestock/internal/export"
	"github.com/andresuchdata/stalestock/internal/ingest"
	"github.com/andresuchdata/stalestock/internal/pipeline"
	"github.com/andresuchdata/stalestock/internal/service"
	"github.com/andresuchdata/stalestock/internal/storage"
)

type commands struct {
	cfg    *config.Config
	out    io.Writer
	loader *ingest.Loader
	now    func() time.Time
}

func (cmd *commands) init(*cli.Context) error {
	loader, err := service.NewLoader(cmd.cfg.Ingest)
	if err != nil {
		return err
	}
	cmd.loader = loader
	if cmd.now == nil {
		cmd.now = time.Now
	}
	return nil
}

func filterFrom(c *cli.Context) domain.Filter {
	return domain.Filter{Store: c.String("store"), Category: c.String("category")}
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", cli.Exit(fmt.Sprintf("%s is required", name), 2)
	}
	return arg, nil
}

// loadFile reads and loads path, printing load warnings, and returns the
// dataset with the filtered records.
func (cmd *commands) loadFile(c *cli.Context, path string) (*domain.Dataset, []domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	result, err := cmd.loader.Load(data, ingest.LoadOptions{
		FileName: filepath.Base(path),
		Encoding: c.String("encoding"),
	})
	if err != nil {
		return nil, nil, err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.out, "警告: %s\n", w)
	}

	return result.Dataset, analytics.ApplyFilter(result.Dataset.Records, filterFrom(c)), nil
}

func (cmd *commands) analyze(c *cli.Context) error {
	path, err := requireArg(c, "FILE")
	if err != nil {
		return err
	}
	return cmd.analyzeFile(c, path)
}

func (cmd *commands) analyzeFile(c *cli.Context, path string) error {
	ds, records, err := cmd.loadFile(c, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.out, "文件: %s (%.2f KB), 编码: %s, 行数: %d\n",
		ds.FileName, float64(ds.SizeBytes)/1024, ds.Encoding, len(ds.Records))
	fmt.Fprint(cmd.out, export.BuildReport(records, cmd.now(), c.Int("top")))
	return nil
}

func (cmd *commands) export(c *cli.Context) error {
	path, err := requireArg(c, "FILE")
	if err != nil {
		return err
	}
	ds, records, err := cmd.loadFile(c, path)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = export.FileName(cmd.now(), "csv")
	}

	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(out), ".xlsx") {
		err = export.WriteXLSX(&buf, ds.AllColumns(), records)
	} else {
		err = export.WriteCSV(&buf, ds.AllColumns(), records)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", out, err)
	}

	fmt.Fprintf(cmd.out, "已导出 %d 行到 %s\n", len(records), out)
	return nil
}

func (cmd *commands) chart(c *cli.Context) error {
	path, err := requireArg(c, "FILE")
	if err != nil {
		return err
	}
	ds, records, err := cmd.loadFile(c, path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = export.RenderChart(&buf, c.String("kind"), records, export.ChartOptions{
		GroupBy: c.String("group-by"),
		HasDate: ds.HasDate,
		TopN:    c.Int("n"),
		Bins:    c.Int("bins"),
	})
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", out, err)
	}
	fmt.Fprintf(cmd.out, "图表已保存到 %s\n", out)
	return nil
}

func (cmd *commands) batch(c *cli.Context) error {
	dir, err := requireArg(c, "DIR")
	if err != nil {
		return err
	}
	files, err := pipeline.CollectFiles(dir)
	if err != nil {
		return err
	}
	return cmd.runBatch(c, files)
}

func (cmd *commands) runBatch(c *cli.Context, files []string) error {
	b := pipeline.NewBatch(cmd.loader, pipeline.BatchConfig{
		WorkerCount: c.Int("workers"),
		OutputDir:   c.String("out-dir"),
		Encoding:    c.String("encoding"),
		Filter:      filterFrom(c),
		ReportTopN:  cmd.cfg.Analytics.ReportTopN,
	})

	result, err := b.Run(c.Context, files)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if result.Failed() > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", result.Failed(), len(result.Jobs)), 1)
	}
	return nil
}

func (cmd *commands) fetch(c *cli.Context) error {
	key, err := requireArg(c, "KEY")
	if err != nil {
		return err
	}

	client, err := storage.New(cmd.cfg.Storage)
	if err != nil {
		return err
	}

	key = storage.ResolveObjectKey(cmd.cfg.Storage.Prefix, key)
	localPath := filepath.Join(c.String("dest"), storage.ObjectRelativePath(cmd.cfg.Storage.Prefix, key))
	if err := client.DownloadObject(c.Context, key, localPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "已下载 %s 到 %s\n", key, localPath)

	return cmd.analyzeFile(c, localPath)
}

func (cmd *commands) drive(c *cli.Context) error {
	svc, err := drive.NewService(c.Context, cmd.cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	if folderID == "" {
		folderID, err = svc.FindFolderByPath(c.Context, c.Args().First())
		if err != nil {
			return err
		}
	}

	files, err := drive.NewDownloader(svc).DownloadFolder(c.Context, drive.DownloadOptions{
		FolderID:    folderID,
		DownloadDir: c.String("dest"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "已从Google Drive下载 %d 个文件\n", len(files))

	return cmd.runBatch(c, files)
}

// purge empties the redis session cache shared by server instances. The
// in-process store of a server cannot be reached from here.
func (cmd *commands) purge(c *cli.Context) error {
	if !cmd.cfg.Cache.Enabled {
		return cli.Exit("purge needs the redis session cache (CACHE_ENABLED=true)", 1)
	}
	store, err := cache.NewDatasetStore(cmd.cfg.Cache, time.Duration(cmd.cfg.Session.TTLSeconds)*time.Second)
	if err != nil {
		return err
	}

	n, err := service.NewInventoryService(service.Options{Loader: cmd.loader, Store: store}).Purge(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "已删除 %d 个数据集\n", n)
	return nil
}
