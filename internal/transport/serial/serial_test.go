package serial

import "testing"

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Device != "/dev/ttyGS0" {
		t.Errorf("Device = %q, want /dev/ttyGS0", opts.Device)
	}
	if opts.ReadBufSize != 1024 {
		t.Errorf("ReadBufSize = %d, want 1024", opts.ReadBufSize)
	}
	if opts.ReadTimeout <= 0 {
		t.Errorf("ReadTimeout = %v, want a positive poll timeout", opts.ReadTimeout)
	}
}

func TestOpenNonexistentDeviceFails(t *testing.T) {
	opts := DefaultOptions()
	opts.Device = "/dev/does-not-exist-paycheck4-test"
	if _, err := Open(opts); err == nil {
		t.Fatal("expected Open on a nonexistent device to fail")
	}
}
