package settings

import "github.com/neuralliquid/portal/internal/theme"

// TopicThemeChanged is published after every resolver mutation.
const TopicThemeChanged = "theme.changed"

// ChangeEvent is the payload of TopicThemeChanged.
type ChangeEvent struct {
	SessionID string
	Selection theme.Selection
	Markers   []theme.Marker
}
