// Package shell implements the interactive prompt that fronts a
// connected device: discovery, raw characteristic access, measurement
// runs, and dataset management.
package shell

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"qardioctl/internal/codec"
	"qardioctl/internal/device"
	"qardioctl/internal/measure"
	"qardioctl/internal/store"
)

// Prompt is the string shown before every command line.
const Prompt = "qardio> "

// errExit unwinds the command loop on "exit".
var errExit = errors.New("exit")

// LineSource supplies one command line per call and io.EOF when input
// ends. Implementations own the prompt, so a readline-backed source
// can redraw it while editing.
type LineSource interface {
	ReadLine() (string, error)
}

// Shell is one interactive session over a device plugin.
type Shell struct {
	plugin device.Plugin
	store  *store.Store
	lines  LineSource
	out    io.Writer
}

// New builds a shell reading commands from in and writing to out,
// prompting before each line. Scripted input and tests use this; the
// CLI wraps a history-keeping line editor via NewWithSource.
func New(plugin device.Plugin, st *store.Store, in io.Reader, out io.Writer) *Shell {
	return NewWithSource(plugin, st, &promptReader{scanner: bufio.NewScanner(in), out: out}, out)
}

// NewWithSource builds a shell on a caller-supplied line source.
func NewWithSource(plugin device.Plugin, st *store.Store, lines LineSource, out io.Writer) *Shell {
	return &Shell{plugin: plugin, store: st, lines: lines, out: out}
}

// promptReader is the plain bufio line source: print the prompt, read
// a line.
type promptReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *promptReader) ReadLine() (string, error) {
	fmt.Fprint(r.out, Prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// Run reads commands until exit, EOF, or context cancellation. The
// dataset store is saved after every mutating command so a crash
// never loses more than the command in flight.
func (s *Shell) Run(ctx context.Context) error {
	for {
		line, err := s.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if err := s.dispatch(ctx, args[0], args[1:]); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "discover":
		return s.cmdDiscover(ctx)
	case "info":
		return s.cmdInfo(ctx)
	case "read":
		return s.cmdRead(ctx, args)
	case "write":
		return s.cmdWrite(ctx, args)
	case "measure":
		return s.cmdMeasure(ctx, args)
	case "battery":
		return s.cmdBattery(ctx)
	case "features":
		return s.cmdFeatures(ctx)
	case "print":
		return s.cmdPrint(args)
	case "dataset":
		return s.cmdDataset(args)
	case "help":
		s.printHelp()
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (s *Shell) cmdDiscover(ctx context.Context) error {
	catalog, err := s.plugin.Discover(ctx)
	if err != nil {
		return err
	}
	for _, svc := range catalog.Services {
		name := svc.Name
		if name == "" {
			name = "unknown service"
		}
		fmt.Fprintf(s.out, "service %s  %s\n", svc.UUID, name)
		for _, ch := range svc.Characteristics {
			name := ch.Name
			if name == "" {
				name = "unknown"
			}
			fmt.Fprintf(s.out, "  [%2d] %s  %-12s %s\n", ch.Handle, ch.UUID, ch.Properties, name)
		}
	}
	return nil
}

func (s *Shell) cmdInfo(ctx context.Context) error {
	info, err := s.plugin.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "%-12s %s\n", k, info[k])
	}
	return nil
}

func (s *Shell) cmdRead(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read <uuid>")
	}
	data, err := s.plugin.Read(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "% x\n", data)
	return nil
}

func (s *Shell) cmdWrite(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: write <uuid> <hex>")
	}
	data, err := hex.DecodeString(strings.ReplaceAll(args[1], ":", ""))
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	return s.plugin.Write(ctx, args[0], data)
}

func (s *Shell) cmdMeasure(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: measure [file]")
	}

	s.store.ResetScratch()
	opts := measure.Options{
		Progress: func(p measure.Phase) {
			fmt.Fprintf(s.out, "  %s...\n", p)
			s.store.AppendProgress(p.String())
		},
		OnReading: func(m codec.Measurement) {
			fmt.Fprintf(s.out, "  cuff %s %s\n", formatSFloat(m.Systolic), m.Unit)
		},
	}

	rec, err := s.plugin.Measure(ctx, opts)
	if err != nil {
		return err
	}

	s.printRecord(rec)
	if err := s.store.SetScratch(rec); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		slog.Warn("saving state", "error", err)
	}

	if len(args) == 1 {
		return appendRecord(args[0], rec)
	}
	return nil
}

func (s *Shell) cmdBattery(ctx context.Context) error {
	level, err := s.plugin.Battery(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d%%\n", level)
	return nil
}

func (s *Shell) cmdFeatures(ctx context.Context) error {
	feat, err := s.plugin.Features(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "bitmask 0x%04x\n", feat["bitmask"])
	if names, ok := feat["supported"].([]string); ok {
		for _, n := range names {
			fmt.Fprintf(s.out, "  %s\n", n)
		}
	}
	return nil
}

func (s *Shell) cmdPrint(args []string) error {
	name := store.Scratch
	if len(args) == 1 {
		name = args[0]
	} else if len(args) > 1 {
		return fmt.Errorf("usage: print [name]")
	}

	rows, err := s.store.Get(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func (s *Shell) cmdDataset(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: dataset ls|bless|rm|cp|mv")
	}

	var err error
	switch sub, rest := args[0], args[1:]; sub {
	case "ls":
		counts := s.store.List()
		for _, name := range s.store.Names() {
			fmt.Fprintf(s.out, "%-20s %d rows\n", name, counts[name])
		}
		return nil
	case "bless":
		if len(rest) != 1 {
			return fmt.Errorf("usage: dataset bless <name>")
		}
		err = s.store.Bless(rest[0])
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("usage: dataset rm <name>")
		}
		err = s.store.Remove(rest[0])
	case "cp":
		src, dst, filter, perr := parseCopyArgs(rest)
		if perr != nil {
			return perr
		}
		err = s.store.Copy(src, dst, filter)
	case "mv":
		if len(rest) != 2 {
			return fmt.Errorf("usage: dataset mv <src> <dst>")
		}
		err = s.store.Move(rest[0], rest[1])
	default:
		return fmt.Errorf("unknown dataset command %q", sub)
	}
	if err != nil {
		return err
	}
	return s.store.Save()
}

// parseCopyArgs handles `cp <src> <dst> [--if field=re]`.
func parseCopyArgs(args []string) (src, dst, filter string, err error) {
	switch len(args) {
	case 2:
		return args[0], args[1], "", nil
	case 4:
		if args[2] != "--if" {
			return "", "", "", fmt.Errorf("usage: dataset cp <src> <dst> [--if field=re]")
		}
		return args[0], args[1], args[3], nil
	default:
		return "", "", "", fmt.Errorf("usage: dataset cp <src> <dst> [--if field=re]")
	}
}

func (s *Shell) printRecord(rec *measure.Record) {
	if rec.Outcome == measure.OutcomeAborted {
		fmt.Fprintf(s.out, "aborted (%s)\n", rec.AbortReason)
		return
	}
	v := rec.Values
	fmt.Fprintf(s.out, "%s/%s %s", formatSFloat(v.Systolic), formatSFloat(v.Diastolic), v.Unit)
	fmt.Fprintf(s.out, "  MAP %s", formatSFloat(v.MeanArterial))
	if v.PulseRate != nil {
		fmt.Fprintf(s.out, "  pulse %s", formatSFloat(*v.PulseRate))
	}
	if rec.Battery > 0 {
		fmt.Fprintf(s.out, "  battery %d%%", rec.Battery)
	}
	fmt.Fprintln(s.out)
	for _, c := range rec.Conditions {
		fmt.Fprintf(s.out, "  note: %s\n", c)
	}
}

func formatSFloat(f codec.SFloat) string {
	if f.IsSpecial() {
		return f.Special.String()
	}
	return fmt.Sprintf("%g", f.Value)
}

// appendRecord appends the record as one JSON line to a log file.
func appendRecord(path string, rec *measure.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `commands:
  discover                     list services and characteristics
  info                         device information service values
  read <uuid>                  read a characteristic (hex output)
  write <uuid> <hex>           write raw bytes to a characteristic
  measure [file]               run a measurement, optionally append to file
  battery                      battery percentage
  features                     supported feature bitmask
  print [name]                 dump a dataset (default: latest, "_")
  dataset ls                   list datasets
  dataset bless <name>         name the latest measurement
  dataset rm <name>            delete a dataset
  dataset cp <src> <dst> [--if field=re]
  dataset mv <src> <dst>
  help                         this text
  exit                         leave the shell
`)
}
