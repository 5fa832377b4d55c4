package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podfs/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Logger.Info().Str("test", t.Name()).Msg("start")
}
