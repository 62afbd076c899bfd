// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian palette, reduced to what the graph CLI needs.
var (
	colorTeal    = lipgloss.Color("#20B9B4")
	colorBright  = lipgloss.Color("#2CD7C7")
	colorSlate   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorDanger  = lipgloss.Color("#E74C3C")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBright)
	headerStyle  = lipgloss.NewStyle().Foreground(colorTeal)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorSlate)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
)

func styleError(msg string) string {
	return errorStyle.Render("✗ " + msg)
}

// kv renders one aligned "key: value" summary line.
func kv(key string, value any) string {
	return fmt.Sprintf("  %s %v", headerStyle.Render(key+":"), value)
}
