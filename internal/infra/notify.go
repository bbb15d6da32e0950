package infra

import (
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// LogPresenter implements domain.PresentationSink by writing interventions
// to the structured log. A desktop build would replace this with a real
// notification surface.
type LogPresenter struct {
	logger *zap.Logger
}

// NewLogPresenter creates a log-backed presentation sink.
func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	return &LogPresenter{logger: logger}
}

// PresentIntervention logs the action and message at a level matching the
// action's weight.
func (p *LogPresenter) PresentIntervention(action domain.Action, message string) error {
	switch action {
	case domain.ActionBlock:
		p.logger.Warn("intervention", zap.String("action", string(action)), zap.String("message", message))
	default:
		p.logger.Info("intervention", zap.String("action", string(action)), zap.String("message", message))
	}
	return nil
}

var _ domain.PresentationSink = (*LogPresenter)(nil)
