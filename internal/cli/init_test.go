package cli

import (
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Errorf("Component() = %q, want %q", logger.Component(), log.ComponentWorker)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(log.NewNop())
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
