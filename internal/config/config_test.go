package config

import (
	"flag"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if opts != want {
		t.Fatalf("Load() = %+v, want defaults %+v", opts, want)
	}
}

func TestDefaultMatchesCanonicalIntervalTable(t *testing.T) {
	opts := Default()
	want := Options{
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
	}
	if opts.StatusReportingInterval != want.StatusReportingInterval {
		t.Errorf("StatusReportingInterval = %v, want %v", opts.StatusReportingInterval, want.StatusReportingInterval)
	}
	if opts.PrintStartDelay != want.PrintStartDelay {
		t.Errorf("PrintStartDelay = %v, want %v", opts.PrintStartDelay, want.PrintStartDelay)
	}
	if opts.ValidationDelay != want.ValidationDelay {
		t.Errorf("ValidationDelay = %v, want %v", opts.ValidationDelay, want.ValidationDelay)
	}
	if opts.BusyStateChangeDelay != want.BusyStateChangeDelay {
		t.Errorf("BusyStateChangeDelay = %v, want %v", opts.BusyStateChangeDelay, want.BusyStateChangeDelay)
	}
	if opts.TofStateChangeDelay != want.TofStateChangeDelay {
		t.Errorf("TofStateChangeDelay = %v, want %v", opts.TofStateChangeDelay, want.TofStateChangeDelay)
	}
	if opts.PaperInChuteSetDelay != want.PaperInChuteSetDelay {
		t.Errorf("PaperInChuteSetDelay = %v, want %v", opts.PaperInChuteSetDelay, want.PaperInChuteSetDelay)
	}
	if opts.PaperInChuteClearDelay != want.PaperInChuteClearDelay {
		t.Errorf("PaperInChuteClearDelay = %v, want %v", opts.PaperInChuteClearDelay, want.PaperInChuteClearDelay)
	}
	if opts.ReassemblyTimeout != want.ReassemblyTimeout {
		t.Errorf("ReassemblyTimeout = %v, want %v", opts.ReassemblyTimeout, want.ReassemblyTimeout)
	}
	if opts.MinMessageSize != want.MinMessageSize {
		t.Errorf("MinMessageSize = %d, want %d", opts.MinMessageSize, want.MinMessageSize)
	}
	if opts.MaxMessageSize != want.MaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", opts.MaxMessageSize, want.MaxMessageSize)
	}
	if opts.UnitAddress != want.UnitAddress {
		t.Errorf("UnitAddress = %q, want %q", opts.UnitAddress, want.UnitAddress)
	}
	if opts.SoftwareVersion != want.SoftwareVersion {
		t.Errorf("SoftwareVersion = %q, want %q", opts.SoftwareVersion, want.SoftwareVersion)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts, err := Load(fs, []string{
		"-unit-address=5",
		"-serial-device=/dev/ttyGS1",
		"-status-reporting-interval=500ms",
		"-enable-injection=true",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.UnitAddress != "5" {
		t.Errorf("UnitAddress = %q, want \"5\"", opts.UnitAddress)
	}
	if opts.SerialDevice != "/dev/ttyGS1" {
		t.Errorf("SerialDevice = %q, want /dev/ttyGS1", opts.SerialDevice)
	}
	if opts.StatusReportingInterval != 500*time.Millisecond {
		t.Errorf("StatusReportingInterval = %v, want 500ms", opts.StatusReportingInterval)
	}
	if !opts.EnableInjection {
		t.Error("EnableInjection = false, want true")
	}
}

func TestApplyEnvFileSetsKnownKeys(t *testing.T) {
	opts := Default()
	content := "UNIT_ADDRESS=3\n# a comment\n\nMAX_MESSAGE_SIZE=2048\nENABLE_INJECTION=true\n"
	if err := applyEnvFile(content, &opts); err != nil {
		t.Fatalf("applyEnvFile: %v", err)
	}
	if opts.UnitAddress != "3" {
		t.Errorf("UnitAddress = %q, want \"3\"", opts.UnitAddress)
	}
	if opts.MaxMessageSize != 2048 {
		t.Errorf("MaxMessageSize = %d, want 2048", opts.MaxMessageSize)
	}
	if !opts.EnableInjection {
		t.Error("EnableInjection = false, want true")
	}
}

func TestApplyEnvFileRejectsMalformedDuration(t *testing.T) {
	opts := Default()
	err := applyEnvFile("VALIDATION_DELAY=not-a-duration\n", &opts)
	if err == nil {
		t.Fatal("expected an error for a malformed duration value")
	}
}

func TestApplyEnvFileIgnoresUnknownKeys(t *testing.T) {
	opts := Default()
	want := opts
	if err := applyEnvFile("SOME_UNRELATED_KEY=whatever\n", &opts); err != nil {
		t.Fatalf("applyEnvFile: %v", err)
	}
	if opts != want {
		t.Fatalf("applyEnvFile mutated Options for an unknown key: got %+v, want %+v", opts, want)
	}
}
