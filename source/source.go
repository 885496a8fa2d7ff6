// Package source decodes audio files and streams into graph buffers and
// encodes rendered audio back to WAV.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/dsp/resample"
	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
)

// ErrUnsupportedFormat is returned for sources that are neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("source: unsupported audio format")

// Format is a container format.
type Format string

// Supported formats.
const (
	WAV Format = "wav"
	MP3 Format = "mp3"
)

const readChunk = 4096

// Option configures a Decoder.
type Option func(*Decoder)

// WithHTTPClient sets the client used for http and https sources.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Decoder) {
		if c != nil {
			d.http = c
		}
	}
}

// WithQuality sets the resampler quality.
func WithQuality(q resample.Quality) Option {
	return func(d *Decoder) { d.quality = q }
}

// WithLogger sets the decoder logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// Decoder loads local files and http(s) URLs. Audio that does not match the
// target rate is resampled. A zero rate keeps the file rate.
type Decoder struct {
	rate    float64
	quality resample.Quality
	http    *http.Client
	log     *slog.Logger
}

// New creates a decoder producing buffers at sampleRate.
func New(sampleRate float64, opts ...Option) *Decoder {
	d := &Decoder{
		rate:    sampleRate,
		quality: resample.QualityBalanced,
		http:    http.DefaultClient,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode implements deck.Decoder.
func (d *Decoder) Decode(ctx context.Context, src string) (*graph.Buffer, error) {
	rc, name, err := d.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf, err := Read(rc, FormatOf(name))
	if err != nil {
		return nil, fmt.Errorf("source: decode %q: %w", src, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.rate > 0 && buf.SampleRate != d.rate {
		d.log.Debug("resampling source", "src", src, "from", buf.SampleRate, "to", d.rate)
		if buf, err = Resample(buf, d.rate, resample.WithQuality(d.quality)); err != nil {
			return nil, fmt.Errorf("source: resample %q: %w", src, err)
		}
	}
	return buf, nil
}

func (d *Decoder) open(ctx context.Context, src string) (io.ReadCloser, string, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		f, err := os.Open(src)
		if err != nil {
			return nil, "", fmt.Errorf("source: %w", err)
		}
		return f, src, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("source: create request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("source: fetch %q: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("source: fetch %q: HTTP %d", src, resp.StatusCode)
	}
	return resp.Body, u.Path, nil
}

// FormatOf guesses the format from a file name. It returns "" when the
// extension is unknown.
func FormatOf(name string) Format {
	switch strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, "/"))) {
	case ".wav", ".wave":
		return WAV
	case ".mp3":
		return MP3
	}
	return ""
}

// sniff inspects the stream header when the name gave no hint.
func sniff(br *bufio.Reader) Format {
	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, []byte("RIFF")):
		return WAV
	case bytes.HasPrefix(head, []byte("ID3")):
		return MP3
	case len(head) >= 2 && head[0] == 0xff && head[1]&0xe0 == 0xe0:
		return MP3
	}
	return ""
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Read decodes a whole stream into a buffer. An empty format is detected
// from the stream header.
func Read(rc io.ReadCloser, f Format) (*graph.Buffer, error) {
	br := bufio.NewReader(rc)
	if f == "" {
		f = sniff(br)
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch f {
	case WAV:
		s, format, err = wav.Decode(br)
	case MP3:
		s, format, err = mp3.Decode(readCloser{br, rc})
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var l, r []float64
	chunk := make([][2]float64, readChunk)
	for {
		n, ok := s.Stream(chunk)
		for _, fr := range chunk[:n] {
			l = append(l, fr[0])
			r = append(r, fr[1])
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return graph.NewBuffer(float64(format.SampleRate), l, r)
}

// Resample converts buf to rate with the polyphase resampler.
func Resample(buf *graph.Buffer, rate float64, opts ...resample.Option) (*graph.Buffer, error) {
	conv := func(ch []float64) ([]float64, error) {
		rs, err := resample.NewForRates(buf.SampleRate, rate, opts...)
		if err != nil {
			return nil, err
		}
		return rs.Process(ch), nil
	}
	l, err := conv(buf.L)
	if err != nil {
		return nil, err
	}
	r, err := conv(buf.R)
	if err != nil {
		return nil, err
	}
	return graph.NewBuffer(rate, l, r)
}

// Stream adapts a buffer to a beep streamer.
type Stream struct {
	buf *graph.Buffer
	pos int
}

// NewStream returns a streamer positioned at the start of buf.
func NewStream(buf *graph.Buffer) *Stream { return &Stream{buf: buf} }

// Stream implements beep.Streamer.
func (s *Stream) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.buf.Frames() {
		return 0, false
	}
	n := min(len(samples), s.buf.Frames()-s.pos)
	for i := range n {
		samples[i] = [2]float64{s.buf.L[s.pos+i], s.buf.R[s.pos+i]}
	}
	s.pos += n
	return n, true
}

// Err implements beep.Streamer.
func (s *Stream) Err() error { return nil }

// Len implements beep.StreamSeeker.
func (s *Stream) Len() int { return s.buf.Frames() }

// Position implements beep.StreamSeeker.
func (s *Stream) Position() int { return s.pos }

// Seek implements beep.StreamSeeker.
func (s *Stream) Seek(p int) error {
	if p < 0 || p > s.buf.Frames() {
		return fmt.Errorf("source: seek %d out of range [0, %d]", p, s.buf.Frames())
	}
	s.pos = p
	return nil
}

// WriteWAV encodes buf as 16-bit stereo WAV.
func WriteWAV(w io.WriteSeeker, buf *graph.Buffer) error {
	return EncodeWAV(w, NewStream(buf), buf.SampleRate)
}

// EncodeWAV encodes any streamer as 16-bit stereo WAV at rate.
func EncodeWAV(w io.WriteSeeker, s beep.Streamer, rate float64) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(int(rate)),
		NumChannels: 2,
		Precision:   2,
	}
	if err := wav.Encode(w, s, format); err != nil {
		return fmt.Errorf("source: encode wav: %w", err)
	}
	return nil
}
