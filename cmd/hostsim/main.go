// Command hostsim is a manual/CI black-box test harness: it opens the
// emulator's gadget device directly over USB bulk endpoints (bypassing
// the tty abstraction the real EGM host never sees), the same way the
// teacher's OpenUSBDevice bypasses its kernel module, and drives the
// wire protocol from the host side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"
)

// hostDevice wraps the gousb handles needed to push bulk OUT frames and
// read bulk IN frames from the emulator's gadget endpoints.
type hostDevice struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
}

func openHostDevice(vid, pid gousb.ID, configNum, ifaceNum, altNum int, epOut, epIn int) (*hostDevice, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("hostsim: open device: %w", err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("hostsim: device not found (VID:0x%04x PID:0x%04x)", uint16(vid), uint16(pid))
	}

	config, err := device.Config(configNum)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hostsim: set config %d: %w", configNum, err)
	}

	intf, err := config.Interface(ifaceNum, altNum)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hostsim: claim interface %d.%d: %w", ifaceNum, altNum, err)
	}

	out, err := intf.OutEndpoint(epOut)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hostsim: open OUT endpoint %d: %w", epOut, err)
	}

	in, err := intf.InEndpoint(epIn)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hostsim: open IN endpoint %d: %w", epIn, err)
	}

	return &hostDevice{ctx: ctx, device: device, config: config, intf: intf, epOut: out, epIn: in}, nil
}

func (d *hostDevice) Close() error {
	d.intf.Close()
	d.config.Close()
	d.device.Close()
	d.ctx.Close()
	return nil
}

func (d *hostDevice) sendFrame(frame []byte) error {
	_, err := d.epOut.Write(frame)
	if err != nil {
		return fmt.Errorf("hostsim: write frame: %w", err)
	}
	return nil
}

func (d *hostDevice) readFrame(timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, 256)
	n, err := d.epIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("hostsim: read frame: %w", err)
	}
	return buf[:n], nil
}

// buildFrame constructs the single request frame a run drives over the
// wire, given -mode and -template.
func buildFrame(mode, templateID string) ([]byte, error) {
	switch mode {
	case "status":
		return []byte("^S|^"), nil
	case "print":
		if len(templateID) != 1 {
			return nil, fmt.Errorf("-template must be exactly one character, got %q", templateID)
		}
		return []byte(fmt.Sprintf("^P|%s|1|^", templateID)), nil
	default:
		return nil, fmt.Errorf("unknown -mode %q", mode)
	}
}

func main() {
	vid := flag.Uint("vid", 0x0525, "USB vendor ID of the gadget device")
	pid := flag.Uint("pid", 0xa4a7, "USB product ID of the gadget device")
	configNum := flag.Int("config", 1, "USB configuration number")
	ifaceNum := flag.Int("interface", 0, "USB interface number")
	altNum := flag.Int("alt", 0, "USB interface alt setting")
	epOut := flag.Int("ep-out", 0x02, "bulk OUT endpoint address")
	epIn := flag.Int("ep-in", 0x82, "bulk IN endpoint address")
	timeout := flag.Duration("timeout", 2*time.Second, "read timeout")
	mode := flag.String("mode", "status", "status | print")
	templateID := flag.String("template", "A", "single-character template id for -mode=print")
	flag.Parse()

	frame, err := buildFrame(*mode, *templateID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hostsim:", err)
		os.Exit(1)
	}

	dev, err := openHostDevice(gousb.ID(*vid), gousb.ID(*pid), *configNum, *ifaceNum, *altNum, *epOut, *epIn)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := dev.sendFrame(frame); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("sent: %q\n", frame)

	resp, err := dev.readFrame(*timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("received: %q\n", resp)
}
