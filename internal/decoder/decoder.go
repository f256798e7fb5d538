// Package decoder turns one inbound sensor frame into timestamped points.
//
// A frame is either a single legacy value ("5.0") or a comma separated batch,
// optionally prefixed with an environment marker (T<temp>H<hum>V<volt>) and
// optionally split into X, Y and Z waveform channels:
//
//	T25H60V90,X1.0,2.0,Y3.0,Z4.0
//
// Decoding never performs I/O. A token that is not a finite number is
// reported as a *TokenError and skipped; sibling tokens are still decoded.
package decoder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
)

// DefaultInterval is the spacing assumed between consecutive points of one
// channel when reconstructing their timestamps.
const DefaultInterval = 10 * time.Millisecond

const delimiter = ","

// Channel is the waveform tag of a group of points. ChannelNone marks the
// implicit unnamed channel of legacy frames.
type Channel string

const (
	ChannelNone Channel = ""
	ChannelX    Channel = "X"
	ChannelY    Channel = "Y"
	ChannelZ    Channel = "Z"
)

var (
	ErrEmptyFrame      = errors.New("empty frame")
	ErrNotFinite       = errors.New("value is not a finite number")
	ErrNotDecimal      = errors.New("value is not a decimal number")
	ErrMissingYChannel = errors.New("z channel present without y channel")
)

var metaMarker = regexp.MustCompile(`^T(\d+)H(\d+)V(\d+)$`)

// Point is one successfully decoded token.
type Point struct {
	Channel    Channel
	Amplitude  float64
	Timestamp  time.Time
	BatchIndex int
	BatchSize  int
}

// Group holds the tokens of one channel and the points decoded from them.
type Group struct {
	Channel Channel
	Tokens  []string
	Points  []Point
}

// Frame is the decoded form of one raw frame.
type Frame struct {
	// Legacy is set for frames without any delimiter.
	Legacy   bool
	Metadata domain.Metadata
	Groups   []Group
	Errors   []*TokenError
}

// Points flattens the groups in channel order (X, Y, Z or the unnamed group).
func (f *Frame) Points() []Point {
	var n int
	for _, g := range f.Groups {
		n += len(g.Points)
	}
	out := make([]Point, 0, n)
	for _, g := range f.Groups {
		out = append(out, g.Points...)
	}
	return out
}

// TokenCount is the number of non-empty tokens present across all groups.
func (f *Frame) TokenCount() int {
	var n int
	for _, g := range f.Groups {
		n += len(g.Tokens)
	}
	return n
}

// TokenError reports one token that could not be turned into a point.
type TokenError struct {
	Channel Channel
	Index   int
	Token   string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Channel == ChannelNone {
		return fmt.Sprintf("token %d %q: %v", e.Index, e.Token, e.Err)
	}
	return fmt.Sprintf("channel %s token %d %q: %v", e.Channel, e.Index, e.Token, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// FatalError means the frame as a whole could not be decoded.
type FatalError struct {
	Frame string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Decode splits raw into channel groups and stamps each point relative to
// arrival. Within a group of N tokens the i-th token gets
// arrival - (N-1-i)*interval, so the last token lands on arrival itself.
// A non-positive interval falls back to DefaultInterval.
func Decode(raw string, arrival time.Time, interval time.Duration) (*Frame, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &FatalError{Frame: raw, Err: ErrEmptyFrame}
	}

	if !strings.Contains(text, delimiter) {
		f := &Frame{
			Legacy:   true,
			Metadata: domain.Metadata{domain.MetaSource: domain.SourceExternal},
			Groups:   []Group{{Channel: ChannelNone, Tokens: []string{text}}},
		}
		f.decodeGroups(arrival, interval)
		return f, nil
	}

	f := &Frame{Metadata: domain.Metadata{}}

	body := text
	if head, rest, _ := strings.Cut(text, delimiter); metaMarker.MatchString(head) {
		if err := parseMarker(head, f.Metadata); err != nil {
			return nil, &FatalError{Frame: raw, Err: err}
		}
		body = rest
	}

	groups, err := splitChannels(body, f.Metadata)
	if err != nil {
		return nil, &FatalError{Frame: raw, Err: err}
	}
	f.Groups = groups
	f.decodeGroups(arrival, interval)
	return f, nil
}

func parseMarker(head string, md domain.Metadata) error {
	m := metaMarker.FindStringSubmatch(head)
	if m == nil {
		return nil
	}
	keys := [...]string{domain.MetaTemperature, domain.MetaHumidity, domain.MetaVoltage}
	for i, key := range keys {
		digits := m[i+1]
		if digits == "" {
			continue
		}
		v, err := strconv.Atoi(digits)
		if err != nil {
			return fmt.Errorf("metadata marker %q: %s: %w", head, key, err)
		}
		md[key] = v
	}
	return nil
}

func splitChannels(body string, md domain.Metadata) ([]Group, error) {
	if !strings.HasPrefix(body, string(ChannelX)) {
		return []Group{{Channel: ChannelNone, Tokens: tokenize(body)}}, nil
	}

	if head, zPart, ok := segment(body, ",Z"); ok {
		xPart, yPart, ok := segment(head, ",Y")
		if !ok {
			return nil, ErrMissingYChannel
		}
		md[domain.MetaDataType] = domain.DataTypeTripleWaveform
		md[domain.MetaSecondWaveform] = true
		md[domain.MetaThirdWaveform] = true
		return []Group{
			{Channel: ChannelX, Tokens: tokenize(xPart[1:])},
			{Channel: ChannelY, Tokens: tokenize(yPart)},
			{Channel: ChannelZ, Tokens: tokenize(zPart)},
		}, nil
	}

	if xPart, yPart, ok := segment(body, ",Y"); ok {
		md[domain.MetaDataType] = domain.DataTypeDualWaveform
		md[domain.MetaSecondWaveform] = true
		return []Group{
			{Channel: ChannelX, Tokens: tokenize(xPart[1:])},
			{Channel: ChannelY, Tokens: tokenize(yPart)},
		}, nil
	}

	md[domain.MetaDataType] = domain.DataTypeWaveform
	return []Group{{Channel: ChannelX, Tokens: tokenize(body[1:])}}, nil
}

// segment returns the text before the first sep and the text between the
// first and second sep. Anything after a repeated channel tag is ignored.
func segment(s, sep string) (head, next string, ok bool) {
	head, rest, ok := strings.Cut(s, sep)
	if !ok {
		return s, "", false
	}
	next, _, _ = strings.Cut(rest, sep)
	return head, next, true
}

func tokenize(s string) []string {
	parts := strings.Split(s, delimiter)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *Frame) decodeGroups(arrival time.Time, interval time.Duration) {
	for gi := range f.Groups {
		g := &f.Groups[gi]
		n := len(g.Tokens)
		g.Points = make([]Point, 0, n)
		for i, tok := range g.Tokens {
			amp, err := ParseAmplitude(tok)
			if err != nil {
				f.Errors = append(f.Errors, &TokenError{Channel: g.Channel, Index: i, Token: tok, Err: err})
				continue
			}
			g.Points = append(g.Points, Point{
				Channel:    g.Channel,
				Amplitude:  amp,
				Timestamp:  arrival.Add(-time.Duration(n-1-i) * interval),
				BatchIndex: i,
				BatchSize:  n,
			})
		}
	}
}

// ParseAmplitude parses one token as a finite decimal float64. Digit
// separators and hexadecimal forms are rejected.
func ParseAmplitude(tok string) (float64, error) {
	digits := strings.TrimLeft(tok, "+-")
	if strings.ContainsRune(tok, '_') || strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, ErrNotDecimal
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}
