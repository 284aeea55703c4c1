package logger

import (
	"fmt"
	"log"
	"os"
)

// New opens (or creates) the log file and returns a logger writing to it.
func New(logFilePath string) (*log.Logger, error) {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	l := log.New(file, "", log.LstdFlags)
	l.Println("Logger initialized.")
	return l, nil
}
