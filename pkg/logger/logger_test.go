// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelWarn,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_Simple(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, "simple")

	l.Debug("hidden")
	l.Info("Agent ready", "agent", "converter", "tools", 2)
	l.With("agent", "converter").Warn("Tool skipped")

	assert.Equal(t, "INFO Agent ready agent=converter tools=2\nWARN Tool skipped agent=converter\n", buf.String())
}

func TestNew_Group(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelDebug, &buf, "simple").WithGroup("sink").Error("Write failed", "table", "logs")
	assert.Equal(t, "ERROR Write failed sink.table=logs\n", buf.String())
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, &buf, "verbose").Info("started")
	assert.Regexp(t, regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} INFO started\n$`), buf.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, &buf, "json").Info("started", "agent", "converter")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "started", line["msg"])
	assert.Equal(t, "converter", line["agent"])
}

func TestInit(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Init(slog.LevelWarn, io.Discard, "simple")
	assert.Same(t, slog.Default(), GetLogger())
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	f, closeFn, err := OpenLogFile(path)
	require.NoError(t, err)

	New(slog.LevelInfo, f, "simple").Info("to file")
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INFO to file\n", string(data))
}
