package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/filter"
	"github.com/orchidnexus/orchid/internal/tree"
)

const msgDisconnected = "live updates disconnected"

type (
	treeChangedMsg  struct{}
	noticeMsg       struct{}
	disconnectedMsg struct{ err error }
	expiredMsg      struct{ err error }
	refreshDoneMsg  struct{ err error }
)

type watchKeyMap struct {
	Refresh key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

func defaultWatchKeys() watchKeyMap {
	return watchKeyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Dismiss: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// watchEvents carries session callbacks, which fire on other goroutines,
// into the program. Tree and notice changes only ask the model to re-read,
// so a full buffer drops them.
type watchEvents struct {
	ch   chan tea.Msg
	done chan struct{}
}

func newWatchEvents() *watchEvents {
	return &watchEvents{ch: make(chan tea.Msg, 32), done: make(chan struct{})}
}

func (e *watchEvents) nudge(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

func (e *watchEvents) post(msg tea.Msg) {
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

func (e *watchEvents) close() { close(e.done) }

// watchModel renders the open project and reacts to push notices.
type watchModel struct {
	app    *App
	events *watchEvents
	filter *filter.Filter
	keys   watchKeyMap

	project    domain.Project
	notice     *domain.Notice
	live       bool
	dropped    bool
	refreshing bool
	spinner    spinner.Model
	status     string
	expired    error
}

func newWatchModel(app *App, p domain.Project, f *filter.Filter, events *watchEvents) watchModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	return watchModel{
		app:     app,
		events:  events,
		filter:  f,
		keys:    defaultWatchKeys(),
		project: p,
		live:    app.Session.Live(),
		spinner: s,
	}
}

func (m watchModel) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch, done := m.events.ch, m.events.done
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-done:
			return nil
		}
	}
}

func (m watchModel) refresh() tea.Cmd {
	t := m.app.Session.Tree()
	return func() tea.Msg {
		_, err := t.Reconcile(context.Background())
		return refreshDoneMsg{err: err}
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.listen()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			m.status = ""
			return m, tea.Batch(m.spinner.Tick, m.refresh())
		case key.Matches(msg, m.keys.Dismiss):
			if m.notice != nil {
				m.app.Session.Board().Dismiss(m.notice.ID)
				m.notice = nil
			}
			return m, nil
		}
		return m, nil

	case spinner.TickMsg:
		if !m.refreshing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshDoneMsg:
		m.refreshing = false
		if msg.err != nil {
			return m.failed(msg.err)
		}
		m.reload()
		m.status = "refreshed " + m.app.now().Format("15:04:05")
		return m, nil

	case treeChangedMsg:
		m.reload()
		return m, m.listen()

	case noticeMsg:
		if n, ok := m.app.Session.Board().Current(); ok {
			m.notice = &n
		} else {
			m.notice = nil
		}
		return m, m.listen()

	case disconnectedMsg:
		m.live = false
		m.dropped = true
		return m, m.listen()

	case expiredMsg:
		m.expired = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// failed handles a refresh error. A 401 has already torn the session down.
func (m watchModel) failed(err error) (tea.Model, tea.Cmd) {
	if api.Classify(err) == api.KindAuth {
		m.expired = err
		return m, tea.Quit
	}
	if errors.Is(err, tree.ErrStaleResult) || errors.Is(err, tree.ErrNoActiveProject) {
		return m, nil
	}
	m.status = api.UserMessage(err)
	return m, nil
}

// reload re-reads the merged tree; a disposed tree keeps the last view.
func (m *watchModel) reload() {
	p, err := m.app.Session.Tree().Snapshot()
	if err != nil {
		return
	}
	m.project = p
	m.live = m.app.Session.Live()
}

func (m watchModel) View() string {
	var b strings.Builder

	p := m.project
	if m.filter != nil {
		u, _ := m.app.Session.User()
		if fp, err := filter.Apply(p, m.filter, m.app.now(), u.ID); err == nil {
			p = fp
		}
	}
	b.WriteString(formatter.FormatProjectTree(p, m.app.now()))
	b.WriteString("\n")

	if m.notice != nil {
		b.WriteString(formatter.FormatNoticeBanner(*m.notice))
		b.WriteString("\n")
	}

	var status []string
	switch {
	case m.dropped:
		status = append(status, formatter.StyleRedBold.Render(msgDisconnected))
	case m.live:
		status = append(status, formatter.StyleGreen.Render("● live"))
	default:
		status = append(status, formatter.Dim("live updates off"))
	}
	if m.filter != nil {
		status = append(status, formatter.Dim("filter: "+m.filter.String()))
	}
	if m.refreshing {
		status = append(status, m.spinner.View()+" refreshing")
	} else if m.status != "" {
		status = append(status, formatter.Dim(m.status))
	}
	b.WriteString(strings.Join(status, "  "))
	b.WriteString("\n")

	var help []string
	for _, k := range []key.Binding{m.keys.Refresh, m.keys.Dismiss, m.keys.Quit} {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(formatter.Dim(strings.Join(help, " · ")))
	b.WriteString("\n")
	return b.String()
}

var _ tea.Model = watchModel{}
