// Package main provides the ldb CLI tool for inspecting and editing lvlkv
// databases.
//
// Usage:
//
//	ldb --db=<path> [global options] <command> [command options] [args]
//
// Commands:
//
//	get <key>                  Print the value of a key
//	put <key> <value>          Write a key
//	delete <key>               Delete a key
//	scan                       Print entries in key order
//	batch <op>...              Apply "put <k> <v>" and "delete <k>" atomically
//	property <name>            Print a database property
//	export <file>              Write a dump stream ("-" for stdout)
//	import <file>              Apply a dump stream ("-" for stdin)
//	repair                     Rebuild a damaged database
//	destroy                    Remove a database
//
// Keys and values prefixed with 0x are decoded as hex. Output that is not
// printable, or all output with --hex, is hex encoded.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/aalhour/lvlkv"
	"github.com/aalhour/lvlkv/dump"
	"github.com/aalhour/lvlkv/internal/logging"
)

var (
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "path to the database (required)",
	}
	optionsFlag = cli.StringFlag{
		Name:  "options",
		Usage: "TOML options file",
	}
	createFlag = cli.BoolFlag{
		Name:  "create_if_missing",
		Usage: "create the database if it does not exist",
	}
	hexFlag = cli.BoolFlag{
		Name:  "hex",
		Usage: "print keys and values in hex",
	}
	statsFlag = cli.BoolFlag{
		Name:  "stats",
		Usage: "print operation statistics after the command",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "v",
		Usage: "log database lifecycle events",
	}

	fromFlag = cli.StringFlag{
		Name:  "from",
		Usage: "first key to scan",
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "stop before this key",
	}
	limitFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "maximum entries to print (0 = unlimited)",
	}
	codecFlag = cli.StringFlag{
		Name:  "codec",
		Usage: "dump block codec: none, snappy, lz4 or zstd",
		Value: "snappy",
	}
	batchFlag = cli.IntFlag{
		Name:  "batch",
		Usage: "records applied per write batch",
		Value: dump.DefaultImportBatchSize,
	}
)

func main() {
	os.Exit(runWithArgs(os.Args, os.Stdout, os.Stderr))
}

// runWithArgs runs the tool with args (args[0] is the program name) and
// returns the process exit code.
func runWithArgs(args []string, stdout, stderr io.Writer) int {
	log := newLogrus(stderr)
	prev := lvlkv.SetUsageHandler(lvlkv.LogUsage(logging.NewLogrus(log)))
	defer lvlkv.SetUsageHandler(prev)

	app := newApp(stdout, stderr, log)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer, log *logrus.Logger) *cli.App {
	app := cli.NewApp()
	app.Name = "ldb"
	app.Usage = "inspect and edit lvlkv databases"
	app.HideVersion = true
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Metadata = map[string]interface{}{"log": logging.NewLogrus(log)}
	app.Flags = []cli.Flag{dbFlag, optionsFlag, createFlag, hexFlag, statsFlag, verboseFlag}
	app.Before = func(ctx *cli.Context) error {
		if ctx.GlobalBool(verboseFlag.Name) {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() > 0 {
			return errors.Errorf("unknown command %q", ctx.Args().First())
		}
		return cli.ShowAppHelp(ctx)
	}

	app.Commands = []cli.Command{
		{Name: "get", Usage: "print the value of a key", ArgsUsage: "<key>", Action: withDB(cmdGet)},
		{Name: "put", Usage: "write a key", ArgsUsage: "<key> <value>", Action: withDB(cmdPut)},
		{Name: "delete", Usage: "delete a key", ArgsUsage: "<key>", Action: withDB(cmdDelete)},
		{
			Name:   "scan",
			Usage:  "print entries in key order",
			Flags:  []cli.Flag{fromFlag, toFlag, limitFlag},
			Action: withDB(cmdScan),
		},
		{Name: "batch", Usage: "apply put and delete ops atomically", ArgsUsage: "<op>...", Action: withDB(cmdBatch)},
		{Name: "property", Usage: "print a database property", ArgsUsage: "<name>", Action: withDB(cmdProperty)},
		{
			Name:      "export",
			Usage:     "write a dump stream",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{codecFlag},
			Action:    withDB(cmdExport),
		},
		{
			Name:      "import",
			Usage:     "apply a dump stream",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{batchFlag},
			Action:    withDB(cmdImport),
		},
		{Name: "repair", Usage: "rebuild a damaged database", Action: withClosed(lvlkv.RepairDB, "repaired")},
		{Name: "destroy", Usage: "remove a database", Action: withClosed(lvlkv.DestroyDB, "destroyed")},
	}
	return app
}

func newLogrus(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.Out = out
	log.SetLevel(logrus.WarnLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "0102 15:04:05.000",
		DisableColors:   !isTerminal(out),
	})
	return log
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// Sessions
// =============================================================================

// session holds every handle one command creates.
type session struct {
	path  string
	opts  *lvlkv.Options
	cache *lvlkv.Cache
	stats lvlkv.Statistics
	ro    *lvlkv.ReadOptions
	wo    *lvlkv.WriteOptions
	db    *lvlkv.DB

	hex bool
	out io.Writer
	log lvlkv.Logger
}

func newSession(ctx *cli.Context) (*session, error) {
	path := ctx.GlobalString(dbFlag.Name)
	if path == "" {
		return nil, errors.New("--db flag is required")
	}

	file := &lvlkv.OptionsFile{}
	if name := ctx.GlobalString(optionsFlag.Name); name != "" {
		f, err := lvlkv.ReadOptionsFile(name)
		if err != nil {
			return nil, err
		}
		file = f
	}

	s := &session{
		path: path,
		opts: lvlkv.NewOptions(),
		hex:  ctx.GlobalBool(hexFlag.Name),
		out:  ctx.App.Writer,
	}
	s.cache = file.Apply(s.opts)
	if ctx.GlobalBool(createFlag.Name) {
		s.opts.SetCreateIfMissing(true)
	}
	if ctx.GlobalBool(statsFlag.Name) {
		s.stats = lvlkv.NewStatistics()
		s.opts.SetStatistics(s.stats)
	}
	if l, ok := ctx.App.Metadata["log"].(lvlkv.Logger); ok {
		s.log = l
		s.opts.SetInfoLog(l)
	}
	s.ro = file.ReadOptions()
	s.wo = file.WriteOptions()
	return s, nil
}

func (s *session) open() error {
	db, err := lvlkv.Open(s.opts, s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// close releases the handles in ownership order.
func (s *session) close() error {
	var err error
	if s.db != nil {
		if s.stats != nil {
			if v, ok := s.db.PropertyValue(lvlkv.PropertyStats); ok {
				fmt.Fprintln(s.out, v)
			}
		}
		err = s.db.Close()
	}
	s.ro.Destroy()
	s.wo.Destroy()
	s.opts.Destroy()
	if s.cache != nil {
		if cerr := s.cache.Destroy(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func withDB(fn func(*session, *cli.Context) error) func(*cli.Context) error {
	return func(ctx *cli.Context) (err error) {
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		if err := s.open(); err != nil {
			return errors.Wrap(err, "open database")
		}
		return fn(s, ctx)
	}
}

func withClosed(fn func(*lvlkv.Options, string) error, done string) func(*cli.Context) error {
	return func(ctx *cli.Context) (err error) {
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		if err := fn(s.opts, s.path); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %s\n", done, s.path)
		return nil
	}
}

// =============================================================================
// Encoding
// =============================================================================

func (s *session) format(data []byte) string {
	if s.hex {
		return "0x" + hex.EncodeToString(data)
	}
	for _, b := range data {
		if b < 32 || b > 126 {
			return "0x" + hex.EncodeToString(data)
		}
	}
	return string(data)
}

// parseInput decodes 0x-prefixed hex. Anything else is taken literally.
func parseInput(s string) []byte {
	if strings.HasPrefix(s, "0x") {
		if decoded, err := hex.DecodeString(s[2:]); err == nil {
			return decoded
		}
	}
	return []byte(s)
}

func wantArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() != n {
		return errors.Errorf("usage: ldb %s %s", ctx.Command.Name, ctx.Command.ArgsUsage)
	}
	return nil
}

// =============================================================================
// Commands
// =============================================================================

func cmdGet(s *session, ctx *cli.Context) error {
	if err := wantArgs(ctx, 1); err != nil {
		return err
	}
	value, err := s.db.Get(s.ro, parseInput(ctx.Args().Get(0)))
	if errors.Is(err, lvlkv.ErrNotFound) {
		return errors.Wrap(err, lvlkv.CodeNotFound.String())
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.format(value))
	return nil
}

func cmdPut(s *session, ctx *cli.Context) error {
	if err := wantArgs(ctx, 2); err != nil {
		return err
	}
	if err := s.db.Put(s.wo, parseInput(ctx.Args().Get(0)), parseInput(ctx.Args().Get(1))); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "OK")
	return nil
}

func cmdDelete(s *session, ctx *cli.Context) error {
	if err := wantArgs(ctx, 1); err != nil {
		return err
	}
	if err := s.db.Delete(s.wo, parseInput(ctx.Args().Get(0))); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "OK")
	return nil
}

func cmdScan(s *session, ctx *cli.Context) error {
	it, err := s.db.NewIterator(s.ro)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	if from := ctx.String(fromFlag.Name); from != "" {
		it.Seek(parseInput(from))
	} else {
		it.SeekToFirst()
	}
	to := ctx.String(toFlag.Name)
	limit := ctx.Int(limitFlag.Name)

	count := 0
	for ; it.Valid(); it.Next() {
		if to != "" && bytes.Compare(it.Key(), parseInput(to)) >= 0 {
			break
		}
		fmt.Fprintf(s.out, "%s => %s\n", s.format(it.Key()), s.format(it.Value()))
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return errors.Wrap(err, "iterator")
	}
	fmt.Fprintf(s.out, "(%d entries scanned)\n", count)
	return nil
}

// parseBatch turns "put k v delete k ..." into a write batch.
func parseBatch(args []string) (*lvlkv.WriteBatch, error) {
	if len(args) == 0 {
		return nil, errors.New("batch: no operations")
	}
	wb := lvlkv.NewWriteBatch()
	for i := 0; i < len(args); {
		switch args[i] {
		case "put":
			if i+2 >= len(args) {
				wb.Destroy()
				return nil, errors.Errorf("batch: put at %d needs a key and a value", i)
			}
			wb.Put(parseInput(args[i+1]), parseInput(args[i+2]))
			i += 3
		case "delete":
			if i+1 >= len(args) {
				wb.Destroy()
				return nil, errors.Errorf("batch: delete at %d needs a key", i)
			}
			wb.Delete(parseInput(args[i+1]))
			i += 2
		default:
			wb.Destroy()
			return nil, errors.Errorf("batch: unknown operation %q at %d", args[i], i)
		}
	}
	return wb, nil
}

func cmdBatch(s *session, ctx *cli.Context) error {
	wb, err := parseBatch(ctx.Args())
	if err != nil {
		return err
	}
	defer wb.Destroy()
	if err := s.db.Write(s.wo, wb); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "OK (%d operations)\n", wb.Count())
	return nil
}

func cmdProperty(s *session, ctx *cli.Context) error {
	if err := wantArgs(ctx, 1); err != nil {
		return err
	}
	name := ctx.Args().Get(0)
	v, ok := s.db.PropertyValue(name)
	if !ok {
		return errors.Errorf("unknown property %q", name)
	}
	fmt.Fprintln(s.out, v)
	return nil
}

func cmdExport(s *session, ctx *cli.Context) (err error) {
	if err := wantArgs(ctx, 1); err != nil {
		return err
	}
	codec, err := dump.ParseCodec(ctx.String(codecFlag.Name))
	if err != nil {
		return err
	}

	name := ctx.Args().Get(0)
	w := s.out
	if name != "-" {
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "create dump")
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "close dump")
			}
		}()
		w = f
	}

	n, err := dump.Export(s.db, s.ro, w, &dump.ExportOptions{
		WriterOptions: dump.WriterOptions{Codec: codec},
		Logger:        s.log,
	})
	if err != nil {
		return err
	}
	if name != "-" {
		fmt.Fprintf(s.out, "exported %d records to %s\n", n, name)
	}
	return nil
}

func cmdImport(s *session, ctx *cli.Context) error {
	if err := wantArgs(ctx, 1); err != nil {
		return err
	}
	name := ctx.Args().Get(0)
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return errors.Wrap(err, "open dump")
		}
		defer f.Close()
		r = f
	}

	n, err := dump.Import(s.db, s.wo, r, &dump.ImportOptions{
		BatchSize: ctx.Int(batchFlag.Name),
		Logger:    s.log,
	})
	if err != nil {
		return errors.Wrapf(err, "imported %d records before failing", n)
	}
	fmt.Fprintf(s.out, "imported %d records from %s\n", n, name)
	return nil
}
