// Command gbcore runs a headless Game Boy core: it loads a ROM, steps
// the CPU at real-time pace, and writes the battery file back out on
// exit. It has no display of its own; pkg/debugserver optionally exposes
// a read-only introspection stream for an external viewer to consume.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ferrite-systems/gbcore/pkg/debugserver"
	"github.com/ferrite-systems/gbcore/pkg/emu"
	"github.com/ferrite-systems/gbcore/pkg/emulator"
	"github.com/ferrite-systems/gbcore/pkg/romload"
)

func main() {
	romFile := flag.String("rom", "", "the ROM file to load (.gb, .gbc, or a .zip/.gz/.7z archive containing one)")
	frameSkip := flag.Int("frameskip", 1, "advance this many emulated frames per RunUntil call")
	debugAddr := flag.String("debug", "", "if set, serve a read-only debug websocket on this address, e.g. :6061")
	flag.Parse()

	if *romFile == "" {
		fmt.Fprintln(os.Stderr, "gbcore: -rom is required")
		os.Exit(2)
	}

	rom, err := romload.Load(*romFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gbcore: %v\n", err)
		os.Exit(1)
	}

	title := strings.TrimSuffix(filepath.Base(*romFile), filepath.Ext(*romFile))
	saves, err := emu.LoadSaves(title)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gbcore: loading saves: %v\n", err)
		os.Exit(1)
	}
	var saveBytes []byte
	if len(saves) > 0 {
		saveBytes = saves[0].Bytes()
	}

	m := emulator.New()
	if err := m.LoadROM(rom, saveBytes); err != nil {
		fmt.Fprintf(os.Stderr, "gbcore: %v\n", err)
		os.Exit(1)
	}
	m.SetFrameSkip(*frameSkip)

	if *debugAddr != "" {
		srv := debugserver.New()
		srv.Attach(m)
		go func() {
			if err := http.ListenAndServe(*debugAddr, srv); err != nil {
				fmt.Fprintf(os.Stderr, "gbcore: debug server: %v\n", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	save, err := emu.NewSave(title, uint(len(m.ExportBattery())))
	if err != nil {
		fmt.Fprintf(os.Stderr, "gbcore: creating save file: %v\n", err)
		os.Exit(1)
	}
	defer save.Close()

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

run:
	for {
		select {
		case <-sig:
			break run
		case <-ticker.C:
			switch m.RunUntil(emulator.CyclesPerFrame) {
			case emulator.Fatal:
				fmt.Fprintln(os.Stderr, "gbcore: CPU hit a fatal undefined opcode")
				break run
			case emulator.FrameReady:
				_ = m.TakeFramebuffer() // no display attached; drop the frame
			}
		}
	}

	if battery := m.ExportBattery(); battery != nil {
		if err := save.SetBytes(battery); err != nil {
			fmt.Fprintf(os.Stderr, "gbcore: writing save file: %v\n", err)
		}
	}
}
