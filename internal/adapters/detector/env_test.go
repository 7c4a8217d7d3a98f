package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/devshell/internal/adapters/detector"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		isTTY    bool
		ci       string
		expected detector.OutputMode
	}{
		{name: "terminal", isTTY: true, expected: detector.ModeTUI},
		{name: "CI on a terminal", isTTY: true, ci: "true", expected: detector.ModeLinear},
		{name: "pipe", isTTY: false, expected: detector.ModeQuiet},
		{name: "CI=true on a pipe", isTTY: false, ci: "true", expected: detector.ModeLinear},
		{name: "CI=1 on a pipe", isTTY: false, ci: "1", expected: detector.ModeLinear},
		{name: "CI=false on a pipe", isTTY: false, ci: "false", expected: detector.ModeQuiet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.Detect(tt.isTTY, tt.ci))
		})
	}
}

func TestDetectEnvironment_CI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, detector.ModeLinear, detector.DetectEnvironment())
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name         string
		autoDetected detector.OutputMode
		userFlag     string
		expected     detector.OutputMode
	}{
		{name: "empty keeps detection", autoDetected: detector.ModeQuiet, userFlag: "", expected: detector.ModeQuiet},
		{name: "auto keeps detection", autoDetected: detector.ModeLinear, userFlag: "auto", expected: detector.ModeLinear},
		{name: "linear", autoDetected: detector.ModeQuiet, userFlag: "linear", expected: detector.ModeLinear},
		{name: "ci alias", autoDetected: detector.ModeQuiet, userFlag: "ci", expected: detector.ModeLinear},
		{name: "quiet", autoDetected: detector.ModeLinear, userFlag: "quiet", expected: detector.ModeQuiet},
		{name: "tui", autoDetected: detector.ModeQuiet, userFlag: "tui", expected: detector.ModeTUI},
		{name: "unknown keeps detection", autoDetected: detector.ModeLinear, userFlag: "fancy", expected: detector.ModeLinear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.ResolveMode(tt.autoDetected, tt.userFlag))
		})
	}
}

func TestOutputMode_String(t *testing.T) {
	assert.Equal(t, "auto", detector.ModeAuto.String())
	assert.Equal(t, "linear", detector.ModeLinear.String())
	assert.Equal(t, "quiet", detector.ModeQuiet.String())
	assert.Equal(t, "tui", detector.ModeTUI.String())
}
