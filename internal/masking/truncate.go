// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

// Truncate shortens text to at most maxLength characters (runes). It reports
// whether anything was cut. No marker is appended.
func Truncate(text string, maxLength int) (string, bool) {
	if maxLength < 0 {
		maxLength = 0
	}
	if len(text) <= maxLength {
		return text, false
	}
	n := 0
	for i := range text {
		if n == maxLength {
			return text[:i], true
		}
		n++
	}
	return text, false
}
