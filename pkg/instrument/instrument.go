// Copyright 2024 The Farm Core Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package instrument implements lightweight wall-clock instrumentation
// that degrades to a no-op when its log level is disabled, so hot-path
// timing never costs more than a level check.
package instrument

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Timer reports the elapsed time since Start when End is called.
type Timer interface {
	End(...zap.Field)
}

// Start begins timing message at debug level. If logger has debug logging
// disabled, Start returns a Timer whose End is a no-op, avoiding the
// time.Since call and field allocation entirely.
func Start(logger *zap.Logger, message string, fields ...zap.Field) Timer {
	if checkedEntry := logger.Check(zap.DebugLevel, message); checkedEntry != nil {
		return &timer{checkedEntry: checkedEntry, fields: fields, start: time.Now()}
	}
	return nopTimer{}
}

// StartMicros returns the current time as microseconds since the Unix
// epoch, the unit the record manager uses for per-hook records. Unlike
// Start it takes no logger and returns no Timer.
func StartMicros() int64 {
	return time.Now().UnixMicro()
}

type timer struct {
	checkedEntry *zapcore.CheckedEntry
	fields       []zap.Field
	start        time.Time
}

func (t *timer) End(extraFields ...zap.Field) {
	fields := make([]zap.Field, 0, len(t.fields)+len(extraFields)+1)
	fields = append(fields, t.fields...)
	fields = append(fields, extraFields...)
	fields = append(fields, zap.Duration("duration", time.Since(t.start)))
	t.checkedEntry.Write(fields...)
}

type nopTimer struct{}

func (nopTimer) End(...zap.Field) {}
