package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads TLE data in 2-line or 3-line (named) format from r. Malformed
// entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+1 < len(lines); {
		name := ""
		if !strings.HasPrefix(lines[i], "1 ") {
			if i+2 >= len(lines) {
				break
			}
			name = strings.TrimSpace(strings.TrimPrefix(lines[i], "0 "))
			i++
		}
		line1, line2 := lines[i], lines[i+1]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := ParseLines(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "line_index", i, "name", name, "error", err)
			i += 2
			continue
		}
		entries = append(entries, entry)
		i += 2
	}

	return entries, nil
}

// ParseLines validates one element set and extracts its catalog number and epoch.
func ParseLines(name, line1, line2 string) (Entry, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != lineLen {
		return Entry{}, fmt.Errorf("%w: line1 length %d, expected %d", ErrMalformed, len(line1), lineLen)
	}
	if len(line2) != lineLen {
		return Entry{}, fmt.Errorf("%w: line2 length %d, expected %d", ErrMalformed, len(line2), lineLen)
	}
	if line1[0] != '1' {
		return Entry{}, fmt.Errorf("%w: line1 must start with '1', got '%c'", ErrMalformed, line1[0])
	}
	if line2[0] != '2' {
		return Entry{}, fmt.Errorf("%w: line2 must start with '2', got '%c'", ErrMalformed, line2[0])
	}
	for n, l := range []string{line1, line2} {
		if want, got := checksum(l), int(l[lineLen-1]-'0'); want != got {
			return Entry{}, fmt.Errorf("%w: line%d checksum %d, computed %d", ErrMalformed, n+1, got, want)
		}
	}

	// NORAD ID: cols 3-7 on both lines.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: invalid NORAD ID %q", ErrMalformed, noradStr)
	}
	if strings.TrimSpace(line2[2:7]) != noradStr {
		return Entry{}, fmt.Errorf("%w: NORAD ID mismatch between lines", ErrMalformed)
	}

	// Epoch: cols 19-32 of line1.
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if name == "" {
		name = noradStr
	}
	return Entry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// checksum is the modulo-10 sum of the digits of the first 68 columns, with
// each minus sign counting as 1.
func checksum(line string) int {
	sum := 0
	for _, c := range line[:lineLen-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v outside [1, 367)", dayOfYear)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
