package mcu

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortNotFound is returned when no MIDI port matches a configured name.
var ErrPortNotFound = errors.New("midi port not found")

// ErrScanTimeout is returned when the MIDI driver did not enumerate ports in
// time (CoreMIDI in particular can hang).
var ErrScanTimeout = errors.New("midi port scan timed out")

// PortList is a snapshot of the driver's ports.
type PortList struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// Scan enumerates ports with a timeout.
func Scan(timeout time.Duration) (PortList, error) {
	ch := make(chan PortList, 1)
	go func() {
		ch <- PortList{Ins: midi.GetInPorts(), Outs: midi.GetOutPorts()}
	}()

	select {
	case pl := <-ch:
		return pl, nil
	case <-time.After(timeout):
		return PortList{}, ErrScanTimeout
	}
}

// Names returns the in and out port names.
func (pl PortList) Names() (ins, outs []string) {
	for _, in := range pl.Ins {
		ins = append(ins, in.String())
	}
	for _, out := range pl.Outs {
		outs = append(outs, out.String())
	}
	return ins, outs
}

// Find returns the first in and out ports whose names contain the given
// substrings (case-insensitive). Both must be found.
func (pl PortList) Find(inName, outName string) (drivers.In, drivers.Out, error) {
	var in drivers.In
	var out drivers.Out
	for _, p := range pl.Ins {
		if matchPort(p.String(), inName) {
			in = p
			break
		}
	}
	for _, p := range pl.Outs {
		if matchPort(p.String(), outName) {
			out = p
			break
		}
	}
	if in == nil || out == nil {
		return nil, nil, fmt.Errorf("%w: in=%q out=%q", ErrPortNotFound, inName, outName)
	}
	return in, out, nil
}

func matchPort(name, want string) bool {
	if want == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(want))
}

// Port is an open in/out pair for one surface section.
type Port struct {
	name string
	in   drivers.In
	out  drivers.Out

	mu   sync.Mutex
	send func(midi.Message) error
	stop func()

	sent atomic.Uint64
}

// Open starts listening on in (sysex enabled) and prepares out for sending.
// recv runs on the driver's goroutine and must not block for long.
func Open(name string, in drivers.In, out drivers.Out, recv func(midi.Message)) (*Port, error) {
	p := &Port{name: name, in: in, out: out}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", out.String(), err)
	}
	p.send = send

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		recv(msg)
	}, midi.UseSysEx())
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("open input %q: %w", in.String(), err)
	}
	p.stop = stop

	return p, nil
}

// Name returns the section name the port was opened for.
func (p *Port) Name() string { return p.name }

// Send writes one message. Safe for concurrent use.
func (p *Port) Send(msg midi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil {
		return fmt.Errorf("port %s is closed", p.name)
	}
	p.sent.Add(1)
	return p.send(msg)
}

// Sent returns the number of messages written.
func (p *Port) Sent() uint64 { return p.sent.Load() }

// Close stops listening and closes both ports.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.send = nil

	var errs []error
	if p.in != nil {
		errs = append(errs, p.in.Close())
	}
	if p.out != nil {
		errs = append(errs, p.out.Close())
	}
	return errors.Join(errs...)
}
