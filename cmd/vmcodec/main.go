package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/wippyai/vmcodec/codec"
	"github.com/wippyai/vmcodec/config"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/module"
	"github.com/wippyai/vmcodec/storage"
	"github.com/wippyai/vmcodec/value"
)

const usage = `Usage: vmcodec [-config file] <command> [flags]

Commands:
  encode   -layout L -value JSON            encode a value, print hex
  decode   -layout L [-prefix] HEX          decode hex, print JSON
  size     -layout L [-value JSON]          serialized size, or layout facts without -value
  wit      -file resolve.json -type NAME    derive a layout from a WIT type
  module   assemble|publish|inspect|list    manage published modules

Run "vmcodec -i" for interactive mode.
`

var labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

type cli struct {
	cfg   *config.Config
	codec *codec.Codec
	out   io.Writer
	tty   bool
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to vmcodec.toml (default: search upward from the working directory)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()
	codec.SetLogger(logger)
	storage.SetLogger(logger)

	c := &cli{
		cfg:   cfg,
		codec: codec.New(cfg.CodecOptions()...),
		out:   os.Stdout,
		tty:   term.IsTerminal(int(os.Stdout.Fd())),
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fatal(fmt.Errorf("interactive mode needs a terminal"))
		}
		if err := runInteractive(c.codec); err != nil {
			fatal(err)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := c.run(context.Background(), flag.Arg(0), flag.Args()[1:]); err != nil {
		fatal(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad(".")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "encode":
		return c.encode(args)
	case "decode":
		return c.decode(args)
	case "size":
		return c.size(args)
	case "wit":
		return c.wit(args)
	case "module":
		if len(args) == 0 {
			return fmt.Errorf("module: expected assemble, publish, inspect or list")
		}
		return c.module(ctx, args[0], args[1:])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) label(s string) string {
	if c.tty {
		return labelStyle.Render(s)
	}
	return s
}

func (c *cli) print(label string, format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", c.label(label+":"), fmt.Sprintf(format, args...))
}

func parseLayoutValue(layoutText, valueText string) (layout.Layout, value.Value, error) {
	l, err := layout.Parse(layoutText)
	if err != nil {
		return nil, nil, err
	}
	v, err := value.ParseJSON([]byte(valueText), l)
	if err != nil {
		return nil, nil, err
	}
	return l, v, nil
}

func (c *cli) encode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	layoutText := fs.String("layout", "", "Layout, e.g. struct{u64,vector<u8>}")
	valueText := fs.String("value", "", "Value as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	l, v, err := parseLayoutValue(*layoutText, *valueText)
	if err != nil {
		return err
	}
	data, err := c.codec.Encode(v, l)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, hex.EncodeToString(data))
	return nil
}

func (c *cli) decode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	layoutText := fs.String("layout", "", "Layout, e.g. struct{u64,vector<u8>}")
	prefix := fs.Bool("prefix", false, "Allow trailing bytes and report how many were consumed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("decode: expected one hex argument")
	}
	l, err := layout.Parse(*layoutText)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(fs.Arg(0), "0x"))
	if err != nil {
		return fmt.Errorf("decode: invalid hex: %w", err)
	}

	var (
		v        value.Value
		consumed = len(data)
	)
	if *prefix {
		v, consumed, err = c.codec.DecodePrefix(data, l)
	} else {
		v, err = c.codec.Decode(data, l)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(value.ToJSON(v), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(out))
	if *prefix {
		c.print("consumed", "%d of %d bytes", consumed, len(data))
	}
	return nil
}

func (c *cli) size(args []string) error {
	fs := flag.NewFlagSet("size", flag.ContinueOnError)
	layoutText := fs.String("layout", "", "Layout, e.g. struct{u64,vector<u8>}")
	valueText := fs.String("value", "", "Value as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *valueText == "" {
		l, err := layout.Parse(*layoutText)
		if err != nil {
			return err
		}
		if err := layout.Validate(l, c.codec.Limits().MaxDepth); err != nil {
			return err
		}
		info := layout.Analyze(l)
		c.print("layout", "%s", l)
		c.print("depth", "%d", info.Depth)
		c.print("min size", "%d", info.MinSize)
		if info.FixedSize >= 0 {
			c.print("fixed size", "%d", info.FixedSize)
		} else {
			c.print("fixed size", "no")
		}
		c.print("delayed values", "%t", info.HasNative)
		return nil
	}

	l, v, err := parseLayoutValue(*layoutText, *valueText)
	if err != nil {
		return err
	}
	n, err := c.codec.Size(v, l)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, n)
	return nil
}

func (c *cli) wit(args []string) error {
	fs := flag.NewFlagSet("wit", flag.ContinueOnError)
	file := fs.String("file", "", "WIT resolve in JSON form (wasm-tools component wit --json)")
	typeName := fs.String("type", "", "Name of the type to convert")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := wit.LoadJSON(*file)
	if err != nil {
		return fmt.Errorf("load %s: %w", *file, err)
	}
	for _, td := range res.TypeDefs {
		if td.Name == nil || *td.Name != *typeName {
			continue
		}
		l, err := layout.FromWIT(td)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, l)
		return nil
	}
	return fmt.Errorf("type %q not found in %s", *typeName, *file)
}

func (c *cli) module(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet("module "+cmd, flag.ContinueOnError)
	addrText := fs.String("address", "0x1", "Publishing address")
	name := fs.String("name", "", "Module name")
	meta := fs.String("meta", "", "Metadata entries (KEY=VAL,KEY2=VAL2)")
	output := fs.String("o", "", "Output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := value.ParseAddress(*addrText)
	if err != nil {
		return err
	}

	switch cmd {
	case "assemble":
		if fs.NArg() != 1 || *output == "" {
			return fmt.Errorf("module assemble: expected -o <file> and one input wasm file")
		}
		wasm, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		code, err := module.Assemble(addr, *name, parseMetadata(*meta), wasm)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, code, 0o644); err != nil {
			return fmt.Errorf("write file: %w", err)
		}
		c.print("assembled", "%s::%s, %d bytes", addr.ShortString(), *name, len(code))
		return nil

	case "publish":
		if fs.NArg() != 1 {
			return fmt.Errorf("module publish: expected one assembled module file")
		}
		code, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		m, err := module.Deserialize(code)
		if err != nil {
			return err
		}
		st, backend, closeAll, err := c.openStorage(ctx)
		if err != nil {
			return err
		}
		defer closeAll()
		if err := backend.Put(ctx, m.Address, m.Name, code); err != nil {
			return err
		}
		st.Invalidate(m.Address, m.Name)
		vm, err := st.FetchVerifiedModule(ctx, m.Address, m.Name)
		if err != nil {
			if delErr := backend.Delete(ctx, m.Address, m.Name); delErr != nil {
				return fmt.Errorf("%w (and removing it failed: %v)", err, delErr)
			}
			return err
		}
		c.print("published", "%s %s", vm.QualifiedName(), vm.ID)
		return nil

	case "inspect":
		st, _, closeAll, err := c.openStorage(ctx)
		if err != nil {
			return err
		}
		defer closeAll()
		vm, err := st.FetchVerifiedModule(ctx, addr, *name)
		if err != nil {
			return err
		}
		c.print("module", "%s", vm.QualifiedName())
		c.print("cid", "%s", vm.ID)
		c.print("size", "%d bytes", vm.Size())
		c.print("functions", "%s", strings.Join(vm.Functions, ", "))
		for _, e := range vm.Exports {
			if e.Kind != module.ExportFunc {
				c.print("export", "%s %s #%d", e.Kind, e.Name, e.Index)
			}
		}
		for _, md := range vm.Metadata {
			c.print("metadata", "%s = %s", md.Key, md.Value)
		}
		return nil

	case "list":
		if c.cfg.Storage.Backend != config.BackendSQLite {
			return fmt.Errorf("module list: needs the sqlite storage backend")
		}
		db, err := storage.OpenSQLite(ctx, c.cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		names, err := db.List(ctx, addr)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(c.out, addr.ShortString()+"::"+n)
		}
		return nil

	default:
		return fmt.Errorf("unknown module command %q", cmd)
	}
}

func (c *cli) openStorage(ctx context.Context) (*storage.Storage, storage.WritableBackend, func() error, error) {
	if c.cfg.Storage.Backend != config.BackendSQLite {
		return nil, nil, nil, fmt.Errorf("module commands need the sqlite storage backend; set [storage] backend = \"sqlite\"")
	}
	return c.cfg.OpenStorage(ctx)
}

func parseMetadata(s string) []module.Metadata {
	if s == "" {
		return nil
	}
	var md []module.Metadata
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			md = append(md, module.Metadata{Key: []byte(parts[0]), Value: []byte(parts[1])})
		}
	}
	return md
}
