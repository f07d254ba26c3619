package loopback

import (
	"testing"
	"time"
)

type recordingDeliverer struct {
	ch chan []byte
}

func (r *recordingDeliverer) Deliver(chunk []byte) {
	r.ch <- chunk
}

func TestSendIsReadableViaReadOutbound(t *testing.T) {
	p := New()
	defer p.Close()

	go func() {
		if err := p.Send([]byte("*S|01|^")); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	buf := make([]byte, 64)
	n, err := p.ReadOutbound(buf)
	if err != nil {
		t.Fatalf("ReadOutbound: %v", err)
	}
	if got := string(buf[:n]); got != "*S|01|^" {
		t.Fatalf("ReadOutbound = %q, want %q", got, "*S|01|^")
	}
}

func TestWriteInboundReachesDelivererViaRunInbound(t *testing.T) {
	p := New()
	defer p.Close()

	d := &recordingDeliverer{ch: make(chan []byte, 1)}
	go p.RunInbound(d)

	go func() {
		if _, err := p.WriteInbound([]byte("^S|^")); err != nil {
			t.Errorf("WriteInbound: %v", err)
		}
	}()

	select {
	case chunk := <-d.ch:
		if string(chunk) != "^S|^" {
			t.Fatalf("delivered chunk = %q, want %q", chunk, "^S|^")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Deliver")
	}
}

func TestCloseUnblocksPendingReads(t *testing.T) {
	p := New()

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		_, err := p.ReadOutbound(buf)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected ReadOutbound to return an error after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the pending read")
	}
}
