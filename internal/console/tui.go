package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BaSui01/debateflow/debate"
)

// =============================================================================
// 📺 实时观看（bubbletea）
// =============================================================================

// WatchOptions Watch 配置
type WatchOptions struct {
	// TypingDelay 每条发言显示前 "X is typing..." 的最短停留时间
	TypingDelay time.Duration
	Output      io.Writer
	Input       io.Reader
}

type turnMsg struct {
	turn debate.Turn
	took time.Duration
}

type revealMsg struct{ turn debate.Turn }

type finalizedMsg struct {
	outcome debate.Outcome
	closing *debate.Turn
}

type failedMsg struct{ err error }

type watchModel struct {
	ctx     context.Context
	session *debate.Session
	gen     debate.Generator
	delay   time.Duration

	roles   map[string]debate.Role
	styles  palette
	spinner spinner.Model

	turns    []debate.Turn
	typing   string
	outcome  debate.Outcome
	err      error
	done     bool
	quitting bool
}

func newWatchModel(ctx context.Context, sess *debate.Session, gen debate.Generator, delay time.Duration) watchModel {
	roles := make(map[string]debate.Role)
	for _, p := range sess.Participants() {
		roles[p.Name] = p.Role
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorMuted)

	m := watchModel{
		ctx:     ctx,
		session: sess,
		gen:     gen,
		delay:   delay,
		roles:   roles,
		styles:  newPalette(lipgloss.DefaultRenderer()),
		spinner: sp,
		turns:   sess.Turns(),
	}
	if !sess.IsComplete() {
		m.typing = sess.NextSpeaker().Name
	}
	return m
}

func (m watchModel) Init() tea.Cmd {
	if m.session.IsComplete() {
		return m.finalize()
	}
	return tea.Batch(m.spinner.Tick, m.step())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnMsg:
		m.typing = msg.turn.Speaker
		wait := m.delay - msg.took
		if wait <= 0 {
			return m.reveal(msg.turn)
		}
		turn := msg.turn
		return m, tea.Tick(wait, func(time.Time) tea.Msg { return revealMsg{turn: turn} })

	case revealMsg:
		return m.reveal(msg.turn)

	case finalizedMsg:
		if msg.closing != nil {
			m.turns = append(m.turns, *msg.closing)
		}
		m.typing = ""
		m.outcome = msg.outcome
		m.done = true
		return m, tea.Quit

	case failedMsg:
		m.typing = ""
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) reveal(t debate.Turn) (tea.Model, tea.Cmd) {
	m.turns = append(m.turns, t)
	if m.session.IsComplete() {
		m.typing = ""
		return m, m.finalize()
	}
	m.typing = m.session.NextSpeaker().Name
	return m, m.step()
}

func (m watchModel) step() tea.Cmd {
	ctx, sess, gen := m.ctx, m.session, m.gen
	return func() tea.Msg {
		start := time.Now()
		t, err := sess.Step(ctx, gen)
		if err != nil {
			return failedMsg{err: err}
		}
		return turnMsg{turn: t, took: time.Since(start)}
	}
}

func (m watchModel) finalize() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		before := len(sess.Turns())
		outcome, err := sess.Finalize()
		if err != nil {
			return failedMsg{err: err}
		}
		msg := finalizedMsg{outcome: outcome}
		if turns := sess.Turns(); len(turns) > before {
			last := turns[len(turns)-1]
			msg.closing = &last
		}
		return msg
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.banner.Render("🎭 " + m.session.Topic))
	b.WriteString("\n")

	for _, t := range m.turns {
		role := m.roles[t.Speaker]
		b.WriteString(m.styles.rule.Render(Rule))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s: %s\n", m.styles.speaker(role).Render(RoleIcon(role)+" "+t.Speaker), t.Content)
	}

	switch {
	case m.typing != "":
		fmt.Fprintf(&b, "\n%s %s\n", m.spinner.View(), m.styles.muted.Render(m.typing+" is typing..."))
	case m.err != nil:
		fmt.Fprintf(&b, "\n%s\n", m.styles.warning.Render(StopReason(m.session.State(), m.err)))
	case m.done:
		fmt.Fprintf(&b, "\n%s\n", m.styles.banner.Render("🏁 "+StopReason(m.session.State(), nil)))
	}
	if !m.done && !m.quitting {
		b.WriteString(m.styles.muted.Render("q to quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// Watch 在终端里逐条展示辩论直到收尾。用户中途退出时返回 context.Canceled。
func Watch(ctx context.Context, sess *debate.Session, gen debate.Generator, opts WatchOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}

	final, err := tea.NewProgram(newWatchModel(ctx, sess, gen, opts.TypingDelay), progOpts...).Run()
	if err != nil {
		return fmt.Errorf("console watch: %w", err)
	}
	m, ok := final.(watchModel)
	if !ok {
		return nil
	}
	if m.err != nil {
		return m.err
	}
	if m.quitting && !m.done {
		return context.Canceled
	}
	return nil
}
