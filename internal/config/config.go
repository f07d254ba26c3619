// Package config loads the emulator's construction-time option set from
// flags and, optionally, a flat KEY=VALUE .env file in the working
// directory or the nearest ancestor holding a go.mod (see envFilePath).
// There is no remote config service and no hot reload.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options is the full construction-time option set: the twelve protocol
// timing/framing/identity options plus the transport, Control Surface, and
// logging options every complete build needs.
type Options struct {
	StatusReportingInterval time.Duration
	PrintStartDelay         time.Duration
	ValidationDelay         time.Duration
	BusyStateChangeDelay    time.Duration
	TofStateChangeDelay     time.Duration
	PaperInChuteSetDelay    time.Duration
	PaperInChuteClearDelay  time.Duration
	ReassemblyTimeout       time.Duration
	MinMessageSize          int
	MaxMessageSize          int
	UnitAddress             string
	SoftwareVersion         string

	SerialDevice    string
	ControlAddr     string
	EnableInjection bool
	LogLevel        string
}

// Default returns every option at its spec default.
func Default() Options {
	return Options{
		StatusReportingInterval: 2000 * time.Millisecond,
		PrintStartDelay:         3000 * time.Millisecond,
		ValidationDelay:         18000 * time.Millisecond,
		BusyStateChangeDelay:    20000 * time.Millisecond,
		TofStateChangeDelay:     4000 * time.Millisecond,
		PaperInChuteSetDelay:    2000 * time.Millisecond,
		PaperInChuteClearDelay:  10000 * time.Millisecond,
		ReassemblyTimeout:       20 * time.Millisecond,
		MinMessageSize:          4,
		MaxMessageSize:          1024,
		UnitAddress:             "0",
		SoftwareVersion:         "PAY-6.22B",
		SerialDevice:            "/dev/ttyGS0",
		ControlAddr:             "127.0.0.1:8420",
		EnableInjection:         false,
		LogLevel:                "info",
	}
}

// Load binds Options to a flag.FlagSet, applies an optional KEY=VALUE
// environment file found by walking up from the working directory, then
// parses args. Environment file values are applied before flags, so an
// explicit flag always wins.
func Load(fs *flag.FlagSet, args []string) (Options, error) {
	opts := Default()

	if data, err := os.ReadFile(envFilePath()); err == nil {
		if err := applyEnvFile(string(data), &opts); err != nil {
			return Options{}, fmt.Errorf("config: %w", err)
		}
	}

	fs.DurationVar(&opts.StatusReportingInterval, "status-reporting-interval", opts.StatusReportingInterval, "period between unsolicited status broadcasts")
	fs.DurationVar(&opts.PrintStartDelay, "print-start-delay", opts.PrintStartDelay, "T0->T1 delay after a print command is accepted")
	fs.DurationVar(&opts.ValidationDelay, "validation-delay", opts.ValidationDelay, "T1->T2 delay for template validation")
	fs.DurationVar(&opts.BusyStateChangeDelay, "busy-state-change-delay", opts.BusyStateChangeDelay, "T2->T3 delay before returning to idle")
	fs.DurationVar(&opts.TofStateChangeDelay, "tof-state-change-delay", opts.TofStateChangeDelay, "T3->T4 delay before TOF reasserts")
	fs.DurationVar(&opts.PaperInChuteSetDelay, "paper-in-chute-set-delay", opts.PaperInChuteSetDelay, "delay after T2 before the paper-in-chute flag sets")
	fs.DurationVar(&opts.PaperInChuteClearDelay, "paper-in-chute-clear-delay", opts.PaperInChuteClearDelay, "delay after the set before the paper-in-chute flag clears")
	fs.DurationVar(&opts.ReassemblyTimeout, "reassembly-timeout", opts.ReassemblyTimeout, "max gap between segments of a split frame")
	fs.IntVar(&opts.MinMessageSize, "min-message-size", opts.MinMessageSize, "shortest frame accepted before ReasonShort discard")
	fs.IntVar(&opts.MaxMessageSize, "max-message-size", opts.MaxMessageSize, "largest buffered frame before ReasonOverflow discard")
	fs.StringVar(&opts.UnitAddress, "unit-address", opts.UnitAddress, "single ASCII-digit unit address reported in status frames")
	fs.StringVar(&opts.SoftwareVersion, "software-version", opts.SoftwareVersion, "software version string reported in status frames")
	fs.StringVar(&opts.SerialDevice, "serial-device", opts.SerialDevice, "path to the USB CDC-ACM gadget character device")
	fs.StringVar(&opts.ControlAddr, "control-addr", opts.ControlAddr, "bind address for the Control Surface; empty disables it")
	fs.BoolVar(&opts.EnableInjection, "enable-injection", opts.EnableInjection, "register the /print and /status/request injection endpoints")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "minimum diagnostic level: info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("config: parsing flags: %w", err)
	}
	return opts, nil
}

func applyEnvFile(content string, opts *Options) error {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setField(opts, key, value); err != nil {
			return fmt.Errorf("env file key %q: %w", key, err)
		}
	}
	return nil
}

func setField(opts *Options, key, value string) error {
	switch key {
	case "STATUS_REPORTING_INTERVAL":
		return parseDuration(value, &opts.StatusReportingInterval)
	case "PRINT_START_DELAY":
		return parseDuration(value, &opts.PrintStartDelay)
	case "VALIDATION_DELAY":
		return parseDuration(value, &opts.ValidationDelay)
	case "BUSY_STATE_CHANGE_DELAY":
		return parseDuration(value, &opts.BusyStateChangeDelay)
	case "TOF_STATE_CHANGE_DELAY":
		return parseDuration(value, &opts.TofStateChangeDelay)
	case "PAPER_IN_CHUTE_SET_DELAY":
		return parseDuration(value, &opts.PaperInChuteSetDelay)
	case "PAPER_IN_CHUTE_CLEAR_DELAY":
		return parseDuration(value, &opts.PaperInChuteClearDelay)
	case "REASSEMBLY_TIMEOUT":
		return parseDuration(value, &opts.ReassemblyTimeout)
	case "MIN_MESSAGE_SIZE":
		return parseInt(value, &opts.MinMessageSize)
	case "MAX_MESSAGE_SIZE":
		return parseInt(value, &opts.MaxMessageSize)
	case "UNIT_ADDRESS":
		opts.UnitAddress = value
	case "SOFTWARE_VERSION":
		opts.SoftwareVersion = value
	case "SERIAL_DEVICE":
		opts.SerialDevice = value
	case "CONTROL_ADDR":
		opts.ControlAddr = value
	case "ENABLE_INJECTION":
		return parseBool(value, &opts.EnableInjection)
	case "LOG_LEVEL":
		opts.LogLevel = value
	}
	return nil
}

func parseDuration(value string, dst *time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseInt(value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseBool(value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// envFilePath finds a .env file in the working directory, or the nearest
// ancestor carrying a go.mod, falling back to the working directory name
// even if no .env is ever found there (ReadFile's error is the caller's
// signal to skip it).
func envFilePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ".env"
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return filepath.Join(cwd, ".env")
	}
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, ".env")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Join(cwd, ".env")
		}
		dir = parent
	}
}
