package diag

import "testing"

func TestRecordingDiagnosticsCapturesLevelsAndMessages(t *testing.T) {
	d := &RecordingDiagnostics{}
	d.Infof("hello %s", "world")
	d.Warnf("count=%d", 3)
	d.Errorf("boom")

	entries := d.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	want := []Entry{
		{Level: "INFO", Message: "hello world"},
		{Level: "WARN", Message: "count=3"},
		{Level: "ERROR", Message: "boom"},
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestNopDiagnosticsNeverPanics(t *testing.T) {
	var d NopDiagnostics
	d.Infof("x")
	d.Warnf("y")
	d.Errorf("z")
}

func TestNewLeveledDropsBelowMinimum(t *testing.T) {
	inner := &RecordingDiagnostics{}
	d := NewLeveled(inner, "warn")
	d.Infof("should be dropped")
	d.Warnf("should pass")
	d.Errorf("should pass too")

	entries := inner.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("entries = %+v, want WARN then ERROR", entries)
	}
}

func TestNewLeveledUnrecognizedLevelDefaultsToInfo(t *testing.T) {
	inner := &RecordingDiagnostics{}
	d := NewLeveled(inner, "verbose")
	d.Infof("x")
	if len(inner.Entries()) != 1 {
		t.Fatalf("expected the info call to pass through when minLevel is unrecognized")
	}
}
