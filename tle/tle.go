// Package tle parses and curates NORAD two- and three-line element sets.
package tle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed width of TLE data lines, checksum included.
const LineLength = 69

var (
	// ErrMalformedLine reports a line that does not follow the TLE column layout.
	ErrMalformedLine = errors.New("malformed TLE line")
	// ErrChecksum reports a modulo-10 checksum mismatch.
	ErrChecksum = errors.New("TLE checksum mismatch")
	// ErrCatalogMismatch reports line 1 and line 2 naming different satellites.
	ErrCatalogMismatch = errors.New("TLE catalog numbers differ between lines")
)

// ParseError locates a parse failure in the input text (1-based line).
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tle: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ElementSet is one satellite's mean orbital elements at an epoch.
type ElementSet struct {
	Name           string
	NoradID        int
	Classification byte
	IntlDesignator string
	Epoch          time.Time

	InclinationDeg   float64
	RAANDeg          float64
	Eccentricity     float64
	ArgPerigeeDeg    float64
	MeanAnomalyDeg   float64
	MeanMotionRevDay float64
	RevolutionNumber int

	Line1 string
	Line2 string
}

// CatalogID returns the NORAD catalog number zero-padded to five digits.
func (e ElementSet) CatalogID() string {
	return fmt.Sprintf("%05d", e.NoradID)
}

// Label is the satellite name, or the catalog number for nameless sets.
func (e ElementSet) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.CatalogID()
}

// Lines returns the set as a three-line block (two lines when unnamed).
func (e ElementSet) Lines() []string {
	if e.Name == "" {
		return []string{e.Line1, e.Line2}
	}
	return []string{e.Name, e.Line1, e.Line2}
}

// Checksum computes the modulo-10 checksum of the first 68 columns:
// digits add their value, minus signs add one, everything else adds zero.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// Parse reads 2LE or 3LE text. CRLF line endings, blank lines, trailing
// spaces and the "0 " name prefix used by Space-Track are accepted.
func Parse(text string) ([]ElementSet, error) {
	lines := splitLines(text)

	var sets []ElementSet
	for i := 0; i < len(lines); {
		cur := lines[i]
		name := ""
		if !isDataLine(cur.text, '1') {
			name = cleanName(cur.text)
			i++
			if i >= len(lines) {
				return nil, &ParseError{Line: cur.number, Err: fmt.Errorf("%w: name %q without element lines", ErrMalformedLine, name)}
			}
		}
		if i+1 >= len(lines) {
			return nil, &ParseError{Line: lines[i].number, Err: fmt.Errorf("%w: missing line 2", ErrMalformedLine)}
		}
		l1, l2 := lines[i], lines[i+1]
		set, err := parseLines(name, l1, l2)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
		i += 2
	}
	return sets, nil
}

// ParseLines parses a single set from explicit lines. name may be empty.
func ParseLines(name, line1, line2 string) (ElementSet, error) {
	return parseLines(cleanName(name),
		numberedLine{number: 1, text: strings.TrimRight(line1, " \t\r")},
		numberedLine{number: 2, text: strings.TrimRight(line2, " \t\r")},
	)
}

type numberedLine struct {
	number int
	text   string
}

func splitLines(text string) []numberedLine {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]numberedLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, numberedLine{number: i + 1, text: l})
	}
	return out
}

func isDataLine(line string, lineNo byte) bool {
	return len(line) >= LineLength && line[0] == lineNo && line[1] == ' '
}

func cleanName(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "0 ") {
		line = strings.TrimSpace(line[2:])
	}
	return line
}

func parseLines(name string, l1, l2 numberedLine) (ElementSet, error) {
	if err := validateLine(l1.text, '1'); err != nil {
		return ElementSet{}, &ParseError{Line: l1.number, Err: err}
	}
	if err := validateLine(l2.text, '2'); err != nil {
		return ElementSet{}, &ParseError{Line: l2.number, Err: err}
	}

	id1, err := parseCatalogNumber(l1.text[2:7])
	if err != nil {
		return ElementSet{}, &ParseError{Line: l1.number, Err: err}
	}
	id2, err := parseCatalogNumber(l2.text[2:7])
	if err != nil {
		return ElementSet{}, &ParseError{Line: l2.number, Err: err}
	}
	if id1 != id2 {
		return ElementSet{}, &ParseError{Line: l2.number, Err: fmt.Errorf("%w: %d vs %d", ErrCatalogMismatch, id1, id2)}
	}

	epoch, err := parseEpoch(l1.text[18:32])
	if err != nil {
		return ElementSet{}, &ParseError{Line: l1.number, Err: err}
	}

	set := ElementSet{
		Name:           name,
		NoradID:        id1,
		Classification: l1.text[7],
		IntlDesignator: strings.TrimSpace(l1.text[9:17]),
		Epoch:          epoch,
		Line1:          l1.text[:LineLength],
		Line2:          l2.text[:LineLength],
	}

	fields := []struct {
		dst  *float64
		cols string
		what string
	}{
		{&set.InclinationDeg, l2.text[8:16], "inclination"},
		{&set.RAANDeg, l2.text[17:25], "right ascension"},
		{&set.ArgPerigeeDeg, l2.text[34:42], "argument of perigee"},
		{&set.MeanAnomalyDeg, l2.text[43:51], "mean anomaly"},
		{&set.MeanMotionRevDay, l2.text[52:63], "mean motion"},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.cols), 64)
		if err != nil {
			return ElementSet{}, &ParseError{Line: l2.number, Err: fmt.Errorf("%w: %s %q", ErrMalformedLine, f.what, f.cols)}
		}
		*f.dst = v
	}

	ecc, err := strconv.ParseFloat("0."+strings.TrimSpace(l2.text[26:33]), 64)
	if err != nil {
		return ElementSet{}, &ParseError{Line: l2.number, Err: fmt.Errorf("%w: eccentricity %q", ErrMalformedLine, l2.text[26:33])}
	}
	set.Eccentricity = ecc

	if rev := strings.TrimSpace(l2.text[63:68]); rev != "" {
		n, err := strconv.Atoi(rev)
		if err != nil {
			return ElementSet{}, &ParseError{Line: l2.number, Err: fmt.Errorf("%w: revolution number %q", ErrMalformedLine, rev)}
		}
		set.RevolutionNumber = n
	}
	if set.MeanMotionRevDay <= 0 {
		return ElementSet{}, &ParseError{Line: l2.number, Err: fmt.Errorf("%w: mean motion must be positive", ErrMalformedLine)}
	}
	return set, nil
}

func validateLine(line string, lineNo byte) error {
	if len(line) < LineLength {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrMalformedLine, LineLength, len(line))
	}
	if len(line) > LineLength {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrMalformedLine, LineLength, len(line))
	}
	if line[0] != lineNo || line[1] != ' ' {
		return fmt.Errorf("%w: expected line number %c", ErrMalformedLine, lineNo)
	}
	c := line[LineLength-1]
	if c < '0' || c > '9' {
		return fmt.Errorf("%w: checksum column %q is not a digit", ErrMalformedLine, c)
	}
	if want, got := Checksum(line), int(c-'0'); want != got {
		return fmt.Errorf("%w: computed %d, line carries %d", ErrChecksum, want, got)
	}
	return nil
}

// parseCatalogNumber accepts plain five digit numbers and the Alpha-5
// scheme, where a leading letter (I and O skipped) encodes 10..33.
func parseCatalogNumber(cols string) (int, error) {
	cols = strings.TrimSpace(cols)
	if cols == "" {
		return 0, fmt.Errorf("%w: empty catalog number", ErrMalformedLine)
	}
	lead := cols[0]
	if lead >= 'A' && lead <= 'Z' && lead != 'I' && lead != 'O' {
		v := int(lead-'A') + 10
		if lead > 'I' {
			v--
		}
		if lead > 'O' {
			v--
		}
		rest, err := strconv.Atoi(cols[1:])
		if err != nil {
			return 0, fmt.Errorf("%w: catalog number %q", ErrMalformedLine, cols)
		}
		return v*10000 + rest, nil
	}
	n, err := strconv.Atoi(cols)
	if err != nil {
		return 0, fmt.Errorf("%w: catalog number %q", ErrMalformedLine, cols)
	}
	return n, nil
}

// parseEpoch decodes YYDDD.DDDDDDDD. Two-digit years below 57 are 20xx.
func parseEpoch(cols string) (time.Time, error) {
	cols = strings.TrimSpace(cols)
	if len(cols) < 5 {
		return time.Time{}, fmt.Errorf("%w: epoch %q", ErrMalformedLine, cols)
	}
	yy, err := strconv.Atoi(cols[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch year %q", ErrMalformedLine, cols[:2])
	}
	day, err := strconv.ParseFloat(cols[2:], 64)
	if err != nil || day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("%w: epoch day %q", ErrMalformedLine, cols[2:])
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	whole, frac := math.Modf(day - 1)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Duration(math.Round(frac*86400e6)) * time.Microsecond
	return start.AddDate(0, 0, int(whole)).Add(offset), nil
}
