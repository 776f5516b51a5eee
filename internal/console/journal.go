package console

import (
	"fmt"
	"sync"
	"time"
)

// Level is the severity shown in a journal line.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Channel groups journal entries by the form that produced them.
type Channel string

const (
	ChannelDoorbell Channel = "doorbell"
	ChannelLWA      Channel = "lwa"
)

// journalTimeLayout renders millisecond UTC timestamps, e.g.
// 2020-11-05T17:21:08.123Z.
const journalTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one line of the console journal.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Channel Channel   `json:"channel"`
	Text    string    `json:"text"`
}

// Line formats the entry as "[timestamp] [LEVEL] text".
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] [%s] %s", e.Time.UTC().Format(journalTimeLayout), e.Level, e.Text)
}

// Journal is a bounded, concurrency-safe ring of entries. Once full, each
// append evicts the oldest entry.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewJournal creates a Journal holding at most capacity entries. A capacity
// below one is raised to one.
func NewJournal(capacity int) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	return &Journal{entries: make([]Entry, capacity)}
}

// Append records e.
func (j *Journal) Append(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.full {
		out := make([]Entry, j.next)
		copy(out, j.entries[:j.next])
		return out
	}
	out := make([]Entry, 0, len(j.entries))
	out = append(out, j.entries[j.next:]...)
	out = append(out, j.entries[:j.next]...)
	return out
}

// Channel returns the retained entries of one channel, oldest first.
func (j *Journal) Channel(c Channel) []Entry {
	var out []Entry
	for _, e := range j.Entries() {
		if e.Channel == c {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.full {
		return len(j.entries)
	}
	return j.next
}
