package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoardCommandRegistered(t *testing.T) {
	var found bool
	for _, c := range rootCmd.Commands() {
		if c.Use == "board" {
			found = true
			break
		}
	}
	assert.True(t, found, "board command should be registered with root command")
}

func TestBoardCommandProperties(t *testing.T) {
	assert.NotNil(t, boardCmd)
	assert.Equal(t, "board", boardCmd.Use)
	assert.NotNil(t, boardCmd.RunE)
}
