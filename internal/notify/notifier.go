// Package notify surfaces user-facing moments: alerts, transient banners
// and level-up celebrations.
package notify

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/pkg/log"
)

// Notifier receives user-facing notifications.
type Notifier interface {
	// Alert reports a problem the user should see immediately.
	Alert(message string)
	// Banner shows a transient message for the given duration.
	Banner(message string, d time.Duration)
	// LevelUp celebrates reaching a new level.
	LevelUp(level int)
}

// LogNotifier renders notifications into the structured log. The default
// for headless runs.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier logging under the notify component.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		logger: log.L().With().Str(log.FieldComponent, "notify").Logger(),
	}
}

func (n *LogNotifier) Alert(message string) {
	n.logger.Warn().Msg(message)
}

func (n *LogNotifier) Banner(message string, d time.Duration) {
	n.logger.Info().Dur("visible_for", d).Msg(message)
}

func (n *LogNotifier) LevelUp(level int) {
	n.logger.Info().Int("level", level).Msg("level up")
}

// NopNotifier drops everything. Useful in tests.
type NopNotifier struct{}

func (NopNotifier) Alert(string)                 {}
func (NopNotifier) Banner(string, time.Duration) {}
func (NopNotifier) LevelUp(int)                  {}
