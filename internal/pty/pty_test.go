package pty

import (
	"context"
	"strings"
	"testing"
	"time"
)

func collectFrames(t *testing.T, s Session, timeout time.Duration) []byte {
	t.Helper()
	var out []byte
	deadline := time.After(timeout)
	for {
		select {
		case frame, ok := <-s.Frames():
			if !ok {
				return out
			}
			out = append(out, frame.Data...)
		case <-deadline:
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestStartStreamsOutput(t *testing.T) {
	s, err := Start(context.Background(), Config{Command: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	out := collectFrames(t, s, 2*time.Second)
	if !strings.Contains(string(out), "hello") {
		t.Fatalf("expected output to contain %q, got %q", "hello", out)
	}

	code, err := s.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestWriteIsRelayedToStdin(t *testing.T) {
	s, err := Start(context.Background(), Config{Command: "cat"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if _, err := s.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := collectFrames(t, s, 2*time.Second)
	if !strings.Contains(string(out), "ping") {
		t.Fatalf("expected echoed input, got %q", out)
	}
}

func TestTranscriptAccumulatesOutput(t *testing.T) {
	s, err := Start(context.Background(), Config{Command: "echo", Args: []string{"transcript-check"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	collectFrames(t, s, 2*time.Second)
	if _, err := s.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	transcript := s.Transcript()
	if !strings.Contains(string(transcript), "transcript-check") {
		t.Fatalf("expected transcript to retain output, got %q", transcript)
	}
}

func TestResizeRecordsDimensionsWithoutError(t *testing.T) {
	s, err := Start(context.Background(), Config{Command: "sleep", Args: []string{"0.1"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if err := s.Resize(120, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}
}

func TestCloseKillsLongRunningProcess(t *testing.T) {
	s, err := Start(context.Background(), Config{Command: "sleep", Args: []string{"30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(killGrace + 2*time.Second):
		t.Fatal("Close did not return in time")
	}

	code, _ := s.Wait()
	if code == 0 {
		t.Fatalf("expected non-zero exit code for killed process, got %d", code)
	}
}
