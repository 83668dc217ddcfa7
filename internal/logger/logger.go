package logger

import (
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/config"
)

func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}
