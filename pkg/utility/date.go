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

package utility

import (
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	dps "github.com/markusmobius/go-dateparser"
)

const (
	DateFormatISO  = "iso"
	DateFormatUnix = "unix"

	isoLayout = "2006-01-02T15:04:05"
)

// DateParser parses a natural-language date and renders it as "iso",
// "unix" (epoch seconds) or a strftime pattern such as "%Y-%m-%d".
// Unparseable input or an invalid pattern yields "".
func DateParser(text, format string) string {
	parsed, ok := parseDate(text)
	if !ok {
		return ""
	}

	switch strings.TrimSpace(format) {
	case "", DateFormatISO:
		return parsed.Format(isoLayout)
	case DateFormatUnix:
		return strconv.FormatInt(parsed.Unix(), 10)
	}

	out, err := strftime.Format(format, parsed)
	if err != nil {
		return ""
	}
	return out
}

func parseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, isoLayout, time.DateOnly, time.DateTime} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}

	d, err := dps.Parse(nil, text)
	if err != nil || d.Time.IsZero() {
		return time.Time{}, false
	}
	return d.Time, true
}
