package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"ccm/internal/repository"
)

const advanceInterval = 100 * time.Millisecond

type downloadRow struct {
	label    string
	total    int64
	done     int64
	finished bool
	err      error
}

// DownloadModel renders one progress bar per archive download.
type DownloadModel struct {
	bar    progress.Model
	rows   []downloadRow
	index  map[string]int
	tick   int
	closed bool
}

// NewDownloadModel creates an empty download model.
func NewDownloadModel() DownloadModel {
	return DownloadModel{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		index: make(map[string]int),
	}
}

// Init satisfies the tea.Model interface.
func (m DownloadModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.closed {
			return m, nil
		}
		return m, scheduleTick()

	case downloadStartMsg:
		m.index[msg.label] = len(m.rows)
		m.rows = append(m.rows, downloadRow{label: msg.label, total: msg.total})
		return m, nil

	case downloadAdvanceMsg:
		if idx, ok := m.index[msg.label]; ok {
			m.rows[idx].done = msg.done
		}
		return m, nil

	case downloadFinishMsg:
		if idx, ok := m.index[msg.label]; ok {
			m.rows[idx].done = msg.done
			m.rows[idx].finished = true
			m.rows[idx].err = msg.err
		}
		return m, nil

	case WorkDoneMsg:
		m.closed = true
		return m, tea.Quit
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m DownloadModel) View() string {
	var b strings.Builder
	for _, r := range m.rows {
		b.WriteString(pad(r.label, 16))
		b.WriteString("  ")
		switch {
		case r.err != nil:
			b.WriteString(StatusStyle("error").Render("error: " + r.err.Error()))
		case r.finished:
			b.WriteString(m.bar.ViewAs(1))
			fmt.Fprintf(&b, "  %s", StatusStyle("done").Render(humanize.Bytes(uint64(r.done))))
		case r.total > 0:
			b.WriteString(m.bar.ViewAs(float64(r.done) / float64(r.total)))
			fmt.Fprintf(&b, "  %s / %s", humanize.Bytes(uint64(r.done)), humanize.Bytes(uint64(r.total)))
		default:
			spinner := spinnerFrames[m.tick%len(spinnerFrames)]
			fmt.Fprintf(&b, "%s %s", spinner, humanize.Bytes(uint64(r.done)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Downloads shares one bubbletea program between every download of a
// command, so concurrent archives render as separate bars.
type Downloads struct {
	out io.Writer

	mu     sync.Mutex
	prog   *tea.Program
	exited chan error
}

// NewDownloads prepares a renderer writing to out. The program starts with
// the first download.
func NewDownloads(out io.Writer) *Downloads {
	return &Downloads{out: out}
}

// Factory satisfies the repository progress factory signature.
func (d *Downloads) Factory(io.Writer) repository.Progress {
	return &downloadBar{d: d}
}

func (d *Downloads) send(msg tea.Msg) {
	d.mu.Lock()
	if d.prog == nil {
		d.prog = tea.NewProgram(NewDownloadModel(), tea.WithOutput(d.out), tea.WithInput(nil))
		d.exited = make(chan error, 1)
		p, exited := d.prog, d.exited
		go func() {
			_, err := p.Run()
			exited <- err
		}()
	}
	p := d.prog
	d.mu.Unlock()
	p.Send(msg)
}

// Close stops the program after rendering the final state. It is a no-op
// when nothing was downloaded.
func (d *Downloads) Close() error {
	d.mu.Lock()
	p, exited := d.prog, d.exited
	d.prog = nil
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	p.Send(WorkDoneMsg{})
	return <-exited
}

type downloadBar struct {
	d     *Downloads
	label string
	done  int64
	last  time.Time
}

func (b *downloadBar) Start(label string, total int64) {
	b.label = label
	b.d.send(downloadStartMsg{label: label, total: total})
}

func (b *downloadBar) Advance(n int64) {
	b.done += n
	if time.Since(b.last) < advanceInterval {
		return
	}
	b.last = time.Now()
	b.d.send(downloadAdvanceMsg{label: b.label, done: b.done})
}

func (b *downloadBar) Finish(err error) {
	b.d.send(downloadFinishMsg{label: b.label, done: b.done, err: err})
}

// PlainProgress reports download progress as one line per quarter.
type PlainProgress struct {
	out   io.Writer
	label string
	total int64
	done  int64
	next  int64
}

// PlainFactory satisfies the repository progress factory signature.
func PlainFactory(out io.Writer) repository.Progress {
	return &PlainProgress{out: out}
}

func (p *PlainProgress) Start(label string, total int64) {
	p.label = label
	p.total = total
	p.next = 25
	if total > 0 {
		fmt.Fprintf(p.out, "%s: downloading %s\n", label, humanize.Bytes(uint64(total)))
	} else {
		fmt.Fprintf(p.out, "%s: downloading\n", label)
	}
}

func (p *PlainProgress) Advance(n int64) {
	p.done += n
	if p.total <= 0 {
		return
	}
	pct := p.done * 100 / p.total
	for p.next < 100 && pct >= p.next {
		fmt.Fprintf(p.out, "%s: %d%%\n", p.label, p.next)
		p.next += 25
	}
}

func (p *PlainProgress) Finish(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "%s: failed after %s: %v\n", p.label, humanize.Bytes(uint64(p.done)), err)
		return
	}
	fmt.Fprintf(p.out, "%s: done (%s)\n", p.label, humanize.Bytes(uint64(p.done)))
}
