package console

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/BaSui01/debateflow/debate"
)

// 角色配色
var (
	colorModerator = lipgloss.Color("#2563EB")
	colorProponent = lipgloss.Color("#16A34A")
	colorOpponent  = lipgloss.Color("#DC2626")
	colorFreeForm  = lipgloss.Color("#7C3AED")
	colorMuted     = lipgloss.Color("241")
	colorWarning   = lipgloss.Color("208")
)

// Rule 每条发言前的分隔线
const Rule = "----------------------------------------"

// RoleIcon 角色图标
func RoleIcon(r debate.Role) string {
	switch r {
	case debate.RoleModerator:
		return "🎤"
	case debate.RoleProponent:
		return "👍"
	case debate.RoleOpponent:
		return "👎"
	default:
		return "💬"
	}
}

func roleColor(r debate.Role) lipgloss.Color {
	switch r {
	case debate.RoleModerator:
		return colorModerator
	case debate.RoleProponent:
		return colorProponent
	case debate.RoleOpponent:
		return colorOpponent
	default:
		return colorFreeForm
	}
}

// palette 一组绑定到同一个 renderer 的样式
type palette struct {
	renderer *lipgloss.Renderer
	rule     lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
	banner   lipgloss.Style
}

func newPalette(r *lipgloss.Renderer) palette {
	return palette{
		renderer: r,
		rule:     r.NewStyle().Foreground(colorMuted),
		muted:    r.NewStyle().Foreground(colorMuted).Italic(true),
		warning:  r.NewStyle().Foreground(colorWarning).Bold(true),
		banner:   r.NewStyle().Bold(true).Foreground(colorModerator),
	}
}

func (p palette) speaker(r debate.Role) lipgloss.Style {
	return p.renderer.NewStyle().Bold(true).Foreground(roleColor(r))
}
