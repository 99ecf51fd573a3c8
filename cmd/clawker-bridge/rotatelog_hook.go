package main

import (
	"github.com/rs/zerolog"

	"github.com/schmitthub/clawker-bridge/internal/rotatelog"
)

// rotatelogHook mirrors every logged event into the bridge's own
// single-file rolling log, independent of the higher-volume
// lumberjack-backed JSON sink internal/logger may also be writing to.
type rotatelogHook struct {
	file *rotatelog.File
}

func (h rotatelogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.NoLevel {
		return
	}
	_ = h.file.WriteLine(level.String() + " " + msg)
}
