package console

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🖨️ 逐条打印
// =============================================================================

// Printer 把已提交的发言逐条写到终端。可直接作为 debate.WithTurnObserver 的回调。
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	roles  map[string]debate.Role
	icons  bool
	styles palette
}

// PrinterOption Printer 选项
type PrinterOption func(*Printer)

// WithIcons 在发言人前加角色图标
func WithIcons() PrinterOption {
	return func(p *Printer) { p.icons = true }
}

// NewPrinter 创建 Printer；颜色能力由 w 是否为终端决定
func NewPrinter(w io.Writer, participants []debate.Participant, opts ...PrinterOption) *Printer {
	roles := make(map[string]debate.Role, len(participants))
	for _, part := range participants {
		roles[part.Name] = part.Role
	}
	p := &Printer{
		w:      w,
		roles:  roles,
		styles: newPalette(lipgloss.NewRenderer(w)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrintTurn 打印一条发言："{speaker}: {content}"
func (p *Printer) PrintTurn(t debate.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	role := p.roles[t.Speaker]
	name := t.Speaker
	if p.icons {
		name = RoleIcon(role) + " " + name
	}
	fmt.Fprintln(p.w, p.styles.rule.Render(Rule))
	fmt.Fprintf(p.w, "%s: %s\n", p.styles.speaker(role).Render(name), t.Content)
}

// PrintStop 打印结束原因
func (p *Printer) PrintStop(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, p.styles.rule.Render(Rule))
	fmt.Fprintf(p.w, "Stopping reason :%s\n", reason)
}

// StopReason 根据会话快照和运行错误生成结束原因
func StopReason(st debate.State, err error) string {
	if err != nil {
		if types.IsErrorCode(err, types.ErrUpstreamUnavailable) {
			return fmt.Sprintf("debate paused at turn %d: %v", len(st.Turns), unwrapCause(err))
		}
		return fmt.Sprintf("debate stopped at turn %d: %v", len(st.Turns), err)
	}

	reason := fmt.Sprintf("Maximum number of turns %d reached.", st.TurnBudget)
	switch st.Outcome {
	case debate.OutcomeNatural:
		reason += " Winner announced by the moderator."
	case debate.OutcomeForced:
		reason += " Closing statement added."
	}
	return reason
}

func unwrapCause(err error) error {
	if te, ok := types.AsError(err); ok && te.Cause != nil {
		return te.Cause
	}
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}
