package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/app"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.InfoLevel)
	})

	cfg := app.DefaultConfig()
	cfg.LogFormat = app.LogFormatJSON
	cfg.LogLevel = "debug"
	require.NoError(t, setupLogger(cfg))
	require.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	require.True(t, isJSON)

	cfg.LogFormat = app.LogFormatText
	cfg.LogLevel = "loud"
	require.Error(t, setupLogger(cfg))
	require.Equal(t, log.InfoLevel, log.GetLevel())
	_, isText := log.StandardLogger().Formatter.(*log.TextFormatter)
	require.True(t, isText)
}
