package commands

import (
	"fmt"
	"io"
	"sync"
)

// Notices collected while a command runs (spawned jobs, pending transforms).
// main.go prints them to stderr after the command output, so scripts that
// consume stdout are unaffected.
var (
	noticesMu sync.Mutex
	notices   []string
)

// AddNotice queues a notice line for end-of-command printing.
func AddNotice(format string, args ...any) {
	noticesMu.Lock()
	defer noticesMu.Unlock()
	notices = append(notices, fmt.Sprintf(format, args...))
}

// PrintNotices writes collected notices and clears the queue.
func PrintNotices(w io.Writer) {
	noticesMu.Lock()
	defer noticesMu.Unlock()
	for _, n := range notices {
		fmt.Fprintf(w, "note: %s\n", n)
	}
	notices = nil
}
