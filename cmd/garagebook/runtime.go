package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	osfs "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"

	"github.com/kittclouds/garagebook/internal/config"
	"github.com/kittclouds/garagebook/internal/filesync"
	"github.com/kittclouds/garagebook/internal/logging"
	"github.com/kittclouds/garagebook/internal/prompt"
	"github.com/kittclouds/garagebook/internal/shop"
	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// runtime is everything one command invocation needs.
type runtime struct {
	cfg  *config.Config
	log  *logging.Logger
	sync *filesync.Synchronizer
	app  *shop.App
}

func newRuntime(cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	v := config.New()
	if f := cmd.Flags().Lookup("data-dir"); f != nil {
		if err := v.BindPFlag("data_dir", f); err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("logger.level", f); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	log, err := logging.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	fsys := osfs.NewFS()
	host := fsaccess.NewLocalHost(fsys, chooserFor(opts),
		fsaccess.WithAutoGrant(cfg.Permissions.AutoGrant || opts.yes))

	hs, err := openHandleStore(cfg, fsys, host)
	if err != nil {
		log.Close()
		return nil, err
	}

	s := filesync.New(host, hs,
		filesync.WithLogger(log.WithComponent("filesync").SugaredLogger),
		filesync.WithFileName(cfg.FileName),
		filesync.WithWatch(cfg.Watch.Enabled, cfg.Watch.Debounce),
	)
	app := shop.New(s, shop.WithLogger(log.WithComponent("shop").SugaredLogger))

	return &runtime{cfg: cfg, log: log, sync: s, app: app}, nil
}

func chooserFor(opts *rootOptions) fsaccess.Chooser {
	if opts.file != "" {
		return &fsaccess.StaticChooser{SavePath: opts.file, OpenPath: opts.file, Allow: true}
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}
	return prompt.New(wd)
}

func openHandleStore(cfg *config.Config, fsys *osfs.FS, codec fsaccess.HandleCodec) (store.HandleStore, error) {
	p := cfg.HandleStorePath()
	switch cfg.HandleStore.Driver {
	case "memory":
		return store.NewMemStore(), nil
	case "file":
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		dir, err := fsys.FromOSPath(abs)
		if err != nil {
			return nil, fmt.Errorf("handle store path %s: %w", p, err)
		}
		return store.NewFileStore(fsys, dir, codec), nil
	default:
		return store.NewSQLiteStoreWithDSN(p, codec), nil
	}
}

func (rt *runtime) Close() {
	if err := rt.sync.Close(); err != nil {
		rt.log.Warnw("closing handle store", "error", err)
	}
	rt.log.Close()
}

// load brings the remembered file's records into memory. Running a
// command counts as the user gesture that reading a file needs.
func (rt *runtime) load(ctx context.Context) error {
	switch rt.app.Start(ctx) {
	case shop.ScreenUnsupported:
		warn("File access is unavailable; changes are kept in memory only.")
		return nil
	case shop.ScreenChooseFile:
		return fmt.Errorf("no data file yet: run 'garagebook new' or 'garagebook open'")
	default:
		return rt.app.AccessSavedFile(ctx)
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
)

func success(format string, args ...any) {
	green.Print("✓ ")
	fmt.Printf(format+"\n", args...)
}

func warn(format string, args ...any) {
	yellow.Print("⚠ ")
	fmt.Printf(format+"\n", args...)
}
