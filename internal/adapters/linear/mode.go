package linear

import (
	"io"

	"go.trai.ch/devshell/internal/adapters/detector"
)

// ForMode returns the renderer for an output mode, writing status and step output to w.
func ForMode(mode detector.OutputMode, w io.Writer) *Renderer {
	if mode == detector.ModeQuiet {
		return NewQuietRenderer(w)
	}
	return NewRenderer(w, w)
}
