package main

import "testing"

func TestBuildFrameStatus(t *testing.T) {
	frame, err := buildFrame("status", "A")
	if err != nil {
		t.Fatalf("buildFrame: %v", err)
	}
	if string(frame) != "^S|^" {
		t.Errorf("frame = %q, want \"^S|^\"", frame)
	}
}

func TestBuildFramePrint(t *testing.T) {
	frame, err := buildFrame("print", "Q")
	if err != nil {
		t.Fatalf("buildFrame: %v", err)
	}
	if string(frame) != "^P|Q|1|^" {
		t.Errorf("frame = %q, want \"^P|Q|1|^\"", frame)
	}
}

func TestBuildFramePrintRejectsMultiCharTemplate(t *testing.T) {
	if _, err := buildFrame("print", "QQ"); err == nil {
		t.Fatal("expected an error for a multi-character template id")
	}
}

func TestBuildFrameRejectsUnknownMode(t *testing.T) {
	if _, err := buildFrame("bogus", "A"); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
