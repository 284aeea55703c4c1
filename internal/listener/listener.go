// Package listener wraps readline so that background goroutines can print
// above the prompt without corrupting the line being typed.
package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

type Listener struct {
	rl *readline.Instance

	mu        sync.Mutex
	holdAsync bool
	heldLines []string
}

func New() (*Listener, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, err
	}
	return &Listener{rl: rl}, nil
}

func (l *Listener) Close() {
	if l.rl != nil {
		_ = l.rl.Close()
	}
}

// BeginInteractive holds async output until EndInteractive, so a
// confirmation dialog is not interleaved with mission results.
func (l *Listener) BeginInteractive() {
	l.mu.Lock()
	l.holdAsync = true
	l.mu.Unlock()
}

func (l *Listener) EndInteractive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdAsync = false
	for _, s := range l.heldLines {
		l.printAboveUnlocked(s)
	}
	l.heldLines = nil
}

func (l *Listener) printAboveUnlocked(s string) {
	if l.rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = l.rl.Write([]byte("\r\n" + s + "\r\n"))
	l.rl.Refresh()
}

func (l *Listener) PrintAbove(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printAboveUnlocked(s)
}

// AsyncPrintln prints above the prompt, or defers the line while an
// interactive dialog is in progress.
func (l *Listener) AsyncPrintln(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holdAsync {
		l.heldLines = append(l.heldLines, s)
		return
	}
	l.printAboveUnlocked(s)
}

func (l *Listener) GetInput() string {
	line, err := l.rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// GetConfirmation reads one lowercase answer under a temporary prompt.
func (l *Listener) GetConfirmation(prompt string) string {
	l.mu.Lock()
	old := l.rl.Config.Prompt
	l.rl.SetPrompt(prompt)
	l.mu.Unlock()

	line, err := l.rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	l.mu.Lock()
	l.rl.SetPrompt(old)
	l.mu.Unlock()
	return ans
}

func (l *Listener) AskYesNo(question string) bool {
	l.BeginInteractive()
	defer l.EndInteractive()

	l.PrintAbove(question + " [y/n]")

	for {
		switch l.GetConfirmation("> ") {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		l.PrintAbove("Please answer y/n.")
	}
}
