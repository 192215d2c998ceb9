package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetCommandRequiresVodID(t *testing.T) {
	cmd := &resetCommand{}
	code := cmd.Run([]string{"-database-url=postgres://x"})
	require.Equal(t, 1, code)
}

func TestRestartCommandRejectsUnknownStage(t *testing.T) {
	cmd := &restartCommand{}
	code := cmd.Run([]string{"-database-url=postgres://x", "-vod-id=v1", "-stage=NotAStage"})
	require.Equal(t, 1, code)
}

func TestShowCommandRequiresDatabaseURL(t *testing.T) {
	cmd := &showCommand{}
	code := cmd.Run([]string{"-vod-id=v1"})
	require.Equal(t, 1, code)
}
