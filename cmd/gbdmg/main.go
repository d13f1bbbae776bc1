// Command gbdmg runs a DMG ROM in a window.
package main

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/hoppla20/gbemu-go/internal/display"
	"github.com/hoppla20/gbemu-go/internal/emu"
)

func main() {
	app := cli.NewApp()
	app.Name = "gbdmg"
	app.Usage = "gbdmg -rom <path>"
	app.Description = "runs a DMG ROM in a window"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
		cli.IntFlag{Name: "scale", Usage: "window scale", Value: 3},
		cli.StringFlag{Name: "title", Usage: "window title", Value: "gbdmg"},
		cli.BoolTFlag{Name: "save", Usage: "persist cartridge battery RAM to ROM.sav on exit"},
		cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
	}
	app.Action = runApp

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runApp(c *cli.Context) error {
	if c.Bool("debug") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	romPath := c.String("rom")
	if romPath == "" {
		cli.ShowAppHelp(c)
		return errors.New("-rom is required")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	e, err := emu.New(rom, true, os.Stdout)
	if err != nil {
		return err
	}
	if h := e.Header(); h != nil {
		slog.Info("loaded ROM", "title", h.Title, "type", h.CartTypeStr, "banks", h.ROMBanks, "ram_bytes", h.RAMSizeBytes)
	}

	saveRAM := c.Bool("save")
	savPath := strings.TrimSuffix(romPath, ".gb") + ".sav"
	if saveRAM {
		if data, err := os.ReadFile(savPath); err == nil {
			e.Bus().Cartridge().LoadState(data)
		}
	}

	app := display.NewApp(display.Config{Title: c.String("title"), Scale: c.Int("scale")}, e)
	runErr := app.Run()

	if saveRAM {
		if data := e.Bus().Cartridge().SaveState(); len(data) > 0 {
			if err := os.WriteFile(savPath, data, 0o644); err != nil {
				slog.Error("write save RAM", "error", err)
			}
		}
	}
	return runErr
}
