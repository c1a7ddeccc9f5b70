package pipeline

import (
	"fmt"
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	kio "github.com/pyx-ai/pyx-cli/pkg/utils/io"
)

// Display shows progress of a Pipeline.
type Display interface {
	// OnChunk is called after each chunk of an upload is sent.
	OnChunk(kio.ChunkProgress)

	// OnStatus is called after each successful poll.
	OnStatus(rest.TaskStatus)

	// Close ends the display.
	Close()
}

// eraseLine clears the current terminal line and moves the cursor to its head.
const eraseLine = "\x1b[2K\r"

type console struct {
	w io.Writer

	mu         sync.Mutex
	bar        *pb.ProgressBar
	statusLine bool
}

// NewConsole creates a Display writing a progress bar for uploads
// and a single overwritten line for task status.
func NewConsole(w io.Writer) Display {
	return &console{w: w}
}

func (c *console) OnChunk(p kio.ChunkProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar == nil {
		c.bar = pb.New64(p.Total)
		c.bar.Set(pb.Bytes, true)
		c.bar.Set("prefix", "uploading:")
		c.bar.SetWriter(c.w)
		c.bar.Start()
	}
	c.bar.SetCurrent(p.ReadSoFar)
	if 0 < p.Total && p.Total <= p.ReadSoFar {
		c.bar.Finish()
		c.bar = nil
	}
}

func (c *console) OnStatus(st rest.TaskStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	label := st.Status
	if label == "" {
		label = "waiting"
	}
	fmt.Fprintf(c.w, "%sstatus: %s", eraseLine, label)
	c.statusLine = true
}

func (c *console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}
	if c.statusLine {
		fmt.Fprintln(c.w)
		c.statusLine = false
	}
}

type nullDisplay struct{}

// NullDisplay shows nothing.
func NullDisplay() Display {
	return nullDisplay{}
}

func (nullDisplay) OnChunk(kio.ChunkProgress) {}
func (nullDisplay) OnStatus(rest.TaskStatus)  {}
func (nullDisplay) Close()                    {}
