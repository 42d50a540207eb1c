package tts

import (
	"errors"
	"sync"
	"testing"
)

func TestSynthesisStream_CloseConcurrent(t *testing.T) {
	s := NewSynthesisStream()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Close()
		}()
	}
	wg.Wait()

	if err := s.Err(); err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
	if s.Send([]byte{1}) {
		t.Fatal("Send succeeded on a closed stream")
	}
}

func TestSynthesisStream_ErrBlocksUntilClose(t *testing.T) {
	s := NewSynthesisStream()
	s.SetError(errors.New("synthesis failed"))

	done := make(chan error, 1)
	go func() { done <- s.Err() }()

	select {
	case err := <-done:
		t.Fatalf("Err returned before Close: %v", err)
	default:
	}

	_ = s.Close()
	if err := <-done; err == nil || err.Error() != "synthesis failed" {
		t.Fatalf("Err = %v, want synthesis failed", err)
	}
}
