package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner draws a one-line spinner outside of a bubbletea program, for
// the short blocking steps before the session view starts.
type LineSpinner struct {
	out     io.Writer
	spinner spinner.Spinner

	mu      sync.Mutex
	message string
	done    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewLineSpinner creates a spinner for general loading operations (Dot style).
func NewLineSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Dot)
}

// NewConnectionSpinner creates a spinner for network operations (Globe style).
func NewConnectionSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Globe)
}

func newLineSpinner(message string, s spinner.Spinner) *LineSpinner {
	return &LineSpinner{
		out:     os.Stderr,
		spinner: s,
		message: message,
		done:    make(chan struct{}),
	}
}

func (s *LineSpinner) Start() *LineSpinner {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.spinner.FPS)
		defer ticker.Stop()

		frames := s.spinner.Frames
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.out, "\r%s %s", SpinnerStyle.Render(frames[i%len(frames)]), msg)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

func (s *LineSpinner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.out, "\r\033[K")
}

func (s *LineSpinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *LineSpinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}

func (s *LineSpinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
