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

package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kadirpekel/langsketch/pkg/utils"
)

// AuditPath returns the audit file of agent inside dir.
func AuditPath(dir, agent string) string {
	return filepath.Join(dir, agent+"_output_json.json")
}

var auditMu sync.Mutex

// AppendAudit appends r to the JSON array stored at path, creating the
// file when needed. An unreadable file is moved aside to
// <path>.<unix-nanos>.corrupt and a new array is started.
func AppendAudit(path string, r *Record) error {
	auditMu.Lock()
	defer auditMu.Unlock()

	records, err := ReadAudit(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		aside := fmt.Sprintf("%s.%d.corrupt", path, time.Now().UnixNano())
		if mvErr := os.Rename(path, aside); mvErr != nil {
			return fmt.Errorf("failed to move unreadable audit file '%s' aside: %w", path, mvErr)
		}
		slog.Warn("Moved unreadable audit file aside", "path", path, "moved_to", aside, "error", err)
		records = nil
	}
	records = append(records, r)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit records: %w", err)
	}
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit file '%s': %w", path, err)
	}
	return nil
}

// ReadAudit loads the records stored at path.
func ReadAudit(path string) ([]*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse audit file '%s': %w", path, err)
	}
	return records, nil
}
