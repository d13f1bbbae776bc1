// Command gbtrace runs a ROM headless, optionally emitting a
// Gameboy-Doctor-compatible register trace line after every retired
// instruction and watching the serial stream for a pass/fail marker.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/hoppla20/gbemu-go/internal/emu"
)

// writerFunc adapts a function to io.Writer, the same shim the CPU-only
// trace runner uses to tee serial output into an in-memory buffer.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func main() {
	app := cli.NewApp()
	app.Name = "gbtrace"
	app.Usage = "gbtrace -rom <path>"
	app.Description = "runs a ROM headless with optional Gameboy-Doctor tracing"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
		cli.BoolFlag{Name: "trace", Usage: "print a Gameboy-Doctor trace line per retired instruction"},
		cli.IntFlag{Name: "steps", Usage: "max instructions to retire before giving up", Value: 50_000_000},
		cli.StringFlag{Name: "until", Usage: "stop when serial output contains this substring (case-insensitive); empty to disable", Value: "Passed"},
		cli.BoolFlag{Name: "auto", Usage: "auto-detect 'Passed'/'Failed' in serial output and exit 0/1"},
		cli.DurationFlag{Name: "timeout", Usage: "optional wall-clock timeout, e.g. 30s; 0 disables"},
	}
	app.Action = runTrace

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTrace(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		cli.ShowAppHelp(c)
		return errors.New("-rom is required")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	var serial strings.Builder
	sink := writerFunc(func(p []byte) (int, error) { return serial.Write(p) })
	e, err := emu.New(rom, false, sink)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var deadline time.Time
	if t := c.Duration("timeout"); t > 0 {
		deadline = time.Now().Add(t)
	}

	trace := c.Bool("trace")
	until := c.String("until")
	for i := 0; i < c.Int("steps"); i++ {
		e.StepInstruction()

		if trace {
			fmt.Fprintln(out, traceLine(e))
		}

		if until != "" && strings.Contains(strings.ToLower(serial.String()), strings.ToLower(until)) {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "timeout reached")
			break
		}
	}
	out.Flush()

	if c.Bool("auto") {
		s := strings.ToLower(serial.String())
		if strings.Contains(s, "passed") {
			return nil
		}
		if strings.Contains(s, "failed") {
			fmt.Fprintln(os.Stderr, serial.String())
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "no pass/fail marker observed")
		os.Exit(2)
	}
	return nil
}

func traceLine(e *emu.Emulator) string {
	c := e.CPU()
	b := e.Bus()
	pc := c.PC
	m0, m1, m2, m3 := b.Read(pc), b.Read(pc+1), b.Read(pc+2), b.Read(pc+3)
	return fmt.Sprintf(
		"A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X PC:%04X PCMEM:%02X,%02X,%02X,%02X",
		c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, pc, m0, m1, m2, m3,
	)
}
