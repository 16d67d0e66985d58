package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

const (
	// maxNameLen matches the display width of the satellite name column.
	maxNameLen = 24

	// maxLineLen bounds how much of one input line is kept. Anything longer
	// cannot be part of a well-formed record and falls to the resync path.
	maxLineLen = 1024
)

// readLines returns the non-blank lines of r with trailing CR and spaces
// removed. Over-long lines are truncated rather than failing the read.
func readLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var (
		lines []string
		cur   []byte
	)
	for {
		chunk, more, err := br.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if room := maxLineLen - len(cur); room > 0 {
			cur = append(cur, chunk[:min(len(chunk), room)]...)
		}
		if more {
			continue
		}
		if line := strings.TrimRight(string(cur), "\r\n "); line != "" {
			lines = append(lines, line)
		}
		cur = cur[:0]
	}
	return lines, nil
}

// Parse reads 3-line NORAD TLE records from r and returns parsed entries.
// Malformed records are skipped with a warning log and a Diagnostic in the
// returned Report; only read failures produce an error.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, Report, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, Report{}, fmt.Errorf("reading TLE data: %w", err)
	}

	var (
		entries []Entry
		report  Report
	)
	skip := func(i int, name, reason string) {
		report.Skipped = append(report.Skipped, Diagnostic{Index: i, Name: name, Reason: reason})
	}

	i := 0
	for ; i+2 < len(lines); i += 3 {
		name := cleanName(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		// A bad prefix means we are out of step; slide one line and retry.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			skip(i, name, "line prefixes are not \"1 \" and \"2 \"")
			i -= 2
			continue
		}

		if len(line1) < 7 {
			logger.Warn("skipping TLE entry with short line1", "name", name)
			skip(i, name, "line1 too short")
			continue
		}
		noradStr := strings.TrimSpace(line1[2:7])
		noradID, err := strconv.Atoi(noradStr)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "norad_str", noradStr, "name", name)
			skip(i, name, fmt.Sprintf("invalid NORAD id %q", noradStr))
			continue
		}

		el, err := ParseElements(line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid elements", "name", name, "norad_id", noradID, "error", err)
			skip(i, name, err.Error())
			continue
		}

		entries = append(entries, Entry{
			NORADID:  noradID,
			Name:     name,
			Elements: el,
		})
	}

	if i < len(lines) {
		logger.Warn("ignoring trailing partial TLE record", "line_index", i, "lines", len(lines)-i)
		skip(i, cleanName(lines[i]), "truncated record")
	}

	report.Parsed = len(entries)
	return entries, report, nil
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxNameLen {
		s = strings.TrimSpace(s[:maxNameLen])
	}
	return s
}
