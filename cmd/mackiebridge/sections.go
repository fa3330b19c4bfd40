package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"

	"mackiebridge/internal/mcu"
	"mackiebridge/internal/surface"
)

// sectionPort is an open MIDI in/out pair for one unit.
type sectionPort interface {
	Name() string
	Send(msg midi.Message) error
	Sent() uint64
	Close() error
}

// portOpener finds and opens the ports configured for one unit. A missing
// port is reported as mcu.ErrPortNotFound.
type portOpener interface {
	OpenSection(name string, pc PortConfig, recv func(midi.Message)) (sectionPort, error)
}

// scannedPorts opens sections from a driver port scan.
type scannedPorts struct {
	list mcu.PortList
}

func (s scannedPorts) OpenSection(name string, pc PortConfig, recv func(midi.Message)) (sectionPort, error) {
	in, out, err := s.list.Find(pc.In, pc.Out)
	if err != nil {
		return nil, err
	}
	p, err := mcu.Open(name, in, out, recv)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// openSections opens the main unit and every connected extender. Section
// indices follow the order of the ports that opened, so a skipped extender
// leaves no gap. A missing main unit or any error other than a missing
// extender is fatal; ports opened so far are closed before returning it.
func openSections(
	ctx context.Context,
	opener portOpener,
	cfg SurfaceConfig,
	events chan<- Event,
	logger *slog.Logger,
) ([]sectionPort, error) {
	var opened []sectionPort

	open := func(name string, pc PortConfig) (sectionPort, error) {
		idx := len(opened)
		p, err := opener.OpenSection(name, pc, func(msg midi.Message) {
			postEvent(ctx, events, MidiInput{Section: idx, Msg: msg})
		})
		if err != nil {
			return nil, err
		}
		opened = append(opened, p)
		return p, nil
	}

	fail := func(err error) ([]sectionPort, error) {
		closeSections(opened, logger)
		return nil, err
	}

	if _, err := open("main", cfg.Main); err != nil {
		return fail(fmt.Errorf("main unit: %w", err))
	}

	for i, ext := range cfg.Extenders {
		name := fmt.Sprintf("extender-%d", i+1)
		_, err := open(name, ext)
		if errors.Is(err, mcu.ErrPortNotFound) {
			logger.Info("extender not connected; skipping", "section", name, "in", ext.In, "out", ext.Out)
			continue
		}
		if err != nil {
			return fail(fmt.Errorf("%s: %w", name, err))
		}
	}
	return opened, nil
}

func closeSections(ports []sectionPort, logger *slog.Logger) {
	for _, p := range ports {
		logger.Debug("closing MIDI port", "section", p.Name(), "sent", p.Sent())
		if err := p.Close(); err != nil {
			logger.Warn("failed to close MIDI port", "section", p.Name(), "error", err)
		}
	}
}

// surfacePorts adapts open ports for surface.New.
func surfacePorts(ports []sectionPort) []surface.SectionPort {
	out := make([]surface.SectionPort, len(ports))
	for i, p := range ports {
		out[i] = surface.SectionPort{Name: p.Name(), Out: p}
	}
	return out
}
