// Package display hosts the emulator in an ebiten window: keyboard input
// mapped to the joypad, a fixed 4-shade palette applied to the PPU's
// framebuffer each frame, and pause/fast-forward/frame-step/quick-save/
// quick-load hotkeys.
package display

import (
	"image/color"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/hoppla20/gbemu-go/internal/emu"
	"github.com/hoppla20/gbemu-go/internal/joypad"
	"github.com/hoppla20/gbemu-go/internal/ppu"
)

// Palette is the four on-screen colors a 2-bit shade maps to. The zero
// value is the classic DMG green-tinted set.
var Palette = [4]color.RGBA{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// Config controls window presentation only; it has no effect on
// emulation semantics.
type Config struct {
	Title     string
	Scale     int
	StatePath string
}

func (c *Config) defaults() {
	if c.Title == "" {
		c.Title = "gbdmg"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.StatePath == "" {
		c.StatePath = "quicksave.state"
	}
}

// App implements ebiten.Game around an *emu.Emulator.
type App struct {
	cfg    Config
	e      *emu.Emulator
	tex    *ebiten.Image
	pixels []byte // RGBA scratch buffer reused every frame

	paused bool
	fast   bool
}

func NewApp(cfg Config, e *emu.Emulator) *App {
	cfg.defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenW*cfg.Scale, ppu.ScreenH*cfg.Scale)
	return &App{
		cfg:    cfg,
		e:      e,
		tex:    ebiten.NewImage(ppu.ScreenW, ppu.ScreenH),
		pixels: make([]byte, ppu.ScreenW*ppu.ScreenH*4),
	}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

var keymap = []struct {
	key ebiten.Key
	btn joypad.Button
}{
	{ebiten.KeyRight, joypad.Right},
	{ebiten.KeyLeft, joypad.Left},
	{ebiten.KeyUp, joypad.Up},
	{ebiten.KeyDown, joypad.Down},
	{ebiten.KeyZ, joypad.A},
	{ebiten.KeyX, joypad.B},
	{ebiten.KeyShiftRight, joypad.Select},
	{ebiten.KeyEnter, joypad.Start},
}

func (a *App) Update() error {
	for _, k := range keymap {
		if inpututil.IsKeyJustPressed(k.key) {
			a.e.KeyEvent(k.btn, true)
		}
		if inpututil.IsKeyJustReleased(k.key) {
			a.e.KeyEvent(k.btn, false)
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.quickSave()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.quickLoad()
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.e.StepFrame()
		return nil
	}
	if a.paused {
		return nil
	}

	frames := 1
	if a.fast {
		frames = 4
	}
	for i := 0; i < frames; i++ {
		a.e.StepFrame()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	fb := a.e.Framebuffer()
	for y := 0; y < ppu.ScreenH; y++ {
		for x := 0; x < ppu.ScreenW; x++ {
			c := Palette[fb[y][x]&0x03]
			off := (y*ppu.ScreenW + x) * 4
			a.pixels[off], a.pixels[off+1], a.pixels[off+2], a.pixels[off+3] = c.R, c.G, c.B, c.A
		}
	}
	a.tex.WritePixels(a.pixels)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)

	if a.paused {
		ebitenutil.DebugPrint(screen, "paused")
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ppu.ScreenW * a.cfg.Scale, ppu.ScreenH * a.cfg.Scale
}

func (a *App) quickSave() {
	st, err := a.e.Save()
	if err != nil {
		return
	}
	data, err := encodeState(st)
	if err != nil {
		return
	}
	_ = os.WriteFile(a.cfg.StatePath, data, 0o644)
}

func (a *App) quickLoad() {
	data, err := os.ReadFile(a.cfg.StatePath)
	if err != nil {
		return
	}
	st, err := decodeState(data)
	if err != nil {
		return
	}
	_ = a.e.Load(st)
}
