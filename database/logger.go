package database

import (
	"fmt"
	"strings"
)

type Logger interface {
	Print(v ...any)
	Printf(format string, v ...any)
	Println(v ...any)
}

type StdoutLogger struct{}

func (s StdoutLogger) Print(v ...any) {
	fmt.Print(v...)
}

func (s StdoutLogger) Printf(format string, v ...any) {
	fmt.Printf(format, v...)
}

func (s StdoutLogger) Println(v ...any) {
	fmt.Println(v...)
}

type NullLogger struct{}

func (n NullLogger) Print(v ...any)                 {}
func (n NullLogger) Printf(format string, v ...any) {}
func (n NullLogger) Println(v ...any)               {}

// BufferLogger keeps everything it is given, for callers that show the
// output later (compile dialogs, tests).
type BufferLogger struct {
	buf strings.Builder
}

func (b *BufferLogger) Print(v ...any) {
	fmt.Fprint(&b.buf, v...)
}

func (b *BufferLogger) Printf(format string, v ...any) {
	fmt.Fprintf(&b.buf, format, v...)
}

func (b *BufferLogger) Println(v ...any) {
	fmt.Fprintln(&b.buf, v...)
}

func (b *BufferLogger) String() string {
	return b.buf.String()
}
