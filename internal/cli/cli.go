// Package cli implements hazardctl, the operator command line for the
// hazard map service.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-map-service/internal/observability"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Fetch    *FetchCommand
	Buffer   *BufferCommand
	Classify *ClassifyCommand
	History  *HistoryCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(out io.Writer, clock clockwork.Clock) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "hazardctl"
	parser.LongDescription = "Operator tools for the hazard map service: one-off fetches, buffer zones and archive history."

	cmds := &commands{
		Fetch:    &FetchCommand{globals: &globals, out: out, clock: clock},
		Buffer:   &BufferCommand{globals: &globals, out: out},
		Classify: &ClassifyCommand{globals: &globals, out: out},
		History:  &HistoryCommand{globals: &globals, out: out},
	}

	parser.AddCommand("fetch", "Fetch events from the catalog", "Fetch one date range from the catalog and print its statistics.", cmds.Fetch)
	parser.AddCommand("buffer", "Buffer the linear-feature dataset", "Buffer every feature of the dataset and write the zones as a GeoJSON FeatureCollection.", cmds.Buffer)
	parser.AddCommand("classify", "Classify magnitudes", "Print the severity class, threat label and color of each magnitude.", cmds.Classify)
	parser.AddCommand("history", "Show archived fetches", "List the most recent archived fetches and the archived events per severity class.", cmds.History)

	return parser, &globals, cmds
}

// Run is the main entry point for hazardctl using os.Args.
func Run(version string) error {
	return RunWithArgs(version, os.Args[1:], os.Stdout)
}

// RunWithArgs parses args and executes the matched subcommand, writing
// results to out.
func RunWithArgs(version string, args []string, out io.Writer) error {
	for _, arg := range args {
		if arg == "--version" {
			fmt.Fprintf(out, "hazardctl %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(out, clockwork.NewRealClock())
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

func (g *GlobalFlags) logger() *slog.Logger {
	level := "warn"
	if g != nil && g.LogLevel != "" {
		level = g.LogLevel
	}
	return observability.NewLoggerTo(os.Stderr, level, "text")
}

func (g *GlobalFlags) jsonOutput() bool {
	return g != nil && g.JSON
}
