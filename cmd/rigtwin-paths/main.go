// Command rigtwin-paths inspects and maintains the recorded path catalogue
// of the configured storage backend.
//
//	rigtwin-paths [-config dir] list [vehicle]
//	rigtwin-paths [-config dir] [-out dir] [-format json|msgpack] [-compression none|gzip|zstd] export id...
//	rigtwin-paths [-config dir] delete id...
//	rigtwin-paths [-config dir] [-format ...] [-compression ...] upload id...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rigtwin/twin/internal/archive"
	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/internal/logging"
	"github.com/rigtwin/twin/internal/pathcodec"
	"github.com/rigtwin/twin/internal/storage"
	"github.com/rigtwin/twin/internal/storage/memory"
	"github.com/rigtwin/twin/pkg/core"
)

// uploader sends exported path files to the archive.
type uploader interface {
	Upload(ctx context.Context, filePath string, info core.PathInfo) error
}

type exportOptions struct {
	dir         string
	format      pathcodec.Format
	compression pathcodec.Compression
	archive     uploader
}

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	outDir := flag.String("out", "./export", "export directory")
	format := flag.String("format", "json", "export format: json or msgpack")
	compression := flag.String("compression", "none", "export compression: none, gzip or zstd")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] list [vehicle] | export id... | delete id... | upload id...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logManager := logging.NewSlogManager()
	logManager.Setup(logging.Options{Level: "warn", File: os.Stderr})
	logger := logManager.Logger()

	if err := config.Load(*configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	f, err := pathcodec.ParseFormat(*format)
	if err != nil {
		fatal(err)
	}
	c, err := pathcodec.ParseCompression(*compression)
	if err != nil {
		fatal(err)
	}

	b, err := storage.NewBackend(config.GetStorageConfig(), config.GetDBConfig(), logger)
	if err != nil {
		fatal(err)
	}
	if err := b.Init(); err != nil {
		fatal(fmt.Errorf("initialize storage: %w", err))
	}

	ac := config.GetArchiveConfig()
	opts := exportOptions{
		dir:         *outDir,
		format:      f,
		compression: c,
		archive:     archive.New(ac.URL, ac.Secret),
	}
	err = runCommand(b, flag.Args(), os.Stdout, opts)
	if cerr := b.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if strings.HasPrefix(err.Error(), "usage") {
			flag.Usage()
		}
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "rigtwin-paths:", err)
	os.Exit(1)
}

func runCommand(b storage.Backend, args []string, out io.Writer, opts exportOptions) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: no command given")
	}
	switch strings.ToLower(args[0]) {
	case "list":
		if len(args) > 2 {
			return fmt.Errorf("usage: list takes at most one vehicle id")
		}
		vehicleID := ""
		if len(args) == 2 {
			vehicleID = args[1]
		}
		return listPaths(b, vehicleID, out)
	case "export":
		if len(args) < 2 {
			return fmt.Errorf("usage: export needs at least one path id")
		}
		return exportPaths(b, args[1:], out, opts)
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: delete needs at least one path id")
		}
		for _, id := range args[1:] {
			if err := b.DeletePath(id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Fprintln(out, "deleted", id)
		}
		return nil
	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("usage: upload needs at least one path id")
		}
		return uploadPaths(b, args[1:], out, opts)
	default:
		return fmt.Errorf("usage: unknown command %q", args[0])
	}
}

func listPaths(b storage.Backend, vehicleID string, out io.Writer) error {
	infos, err := b.ListPaths()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVEHICLE\tRECORDED\tSAMPLES\tDURATION")
	for _, info := range infos {
		if vehicleID != "" && info.VehicleID != vehicleID {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1fs\n",
			info.ID, info.Name, info.VehicleID,
			info.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
			info.Samples, info.MaxTime)
	}
	return tw.Flush()
}

func exportPaths(b storage.Backend, ids []string, out io.Writer, opts exportOptions) error {
	for _, id := range ids {
		p, err := b.LoadPath(id)
		if err != nil {
			return fmt.Errorf("load %s: %w", id, err)
		}
		file, err := memory.ExportPath(p, opts.dir, opts.format, opts.compression)
		if err != nil {
			return fmt.Errorf("export %s: %w", id, err)
		}
		fmt.Fprintln(out, "exported", id, "to", file)
	}
	return nil
}

// uploadPaths exports each path to a scratch directory and sends it to the
// archive.
func uploadPaths(b storage.Backend, ids []string, out io.Writer, opts exportOptions) error {
	if opts.archive == nil {
		return fmt.Errorf("%w: no archive configured", core.ErrConfiguration)
	}
	scratch, err := os.MkdirTemp("", "rigtwin-upload-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	ctx := context.Background()
	for _, id := range ids {
		p, err := b.LoadPath(id)
		if err != nil {
			return fmt.Errorf("load %s: %w", id, err)
		}
		file, err := memory.ExportPath(p, scratch, opts.format, opts.compression)
		if err != nil {
			return fmt.Errorf("export %s: %w", id, err)
		}
		if err := opts.archive.Upload(ctx, file, p.Info()); err != nil {
			return fmt.Errorf("upload %s: %w", id, err)
		}
		fmt.Fprintln(out, "uploaded", id)
	}
	return nil
}
