package ogg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FlagContinued byte = 0x01
	FlagBOS       byte = 0x02
	FlagEOS       byte = 0x04

	headerSize  = 27
	maxSegments = 255
	maxLacing   = 255
)

var capturePattern = []byte("OggS")

var (
	ErrNoPages      = errors.New("ogg: stream has no pages")
	ErrBadCapture   = errors.New("ogg: missing capture pattern")
	ErrBadVersion   = errors.New("ogg: unsupported stream structure version")
	ErrBadChecksum  = errors.New("ogg: page checksum mismatch")
	ErrMultiplexed  = errors.New("ogg: multiplexed streams are not supported")
	ErrUnaligned    = errors.New("ogg: header packets do not end on a page boundary")
	ErrTruncated    = errors.New("ogg: stream ended before all header packets")
	ErrMissingStart = errors.New("ogg: first page is not a beginning of stream")
)

// Page is a single Ogg page. Segments holds the lacing values; Body their
// concatenated payload.
type Page struct {
	HeaderType byte
	Granule    int64
	Serial     uint32
	Sequence   uint32
	Segments   []byte
	Body       []byte
}

// Marshal encodes the page and fills in its checksum.
func (p *Page) Marshal() []byte {
	buf := make([]byte, headerSize+len(p.Segments)+len(p.Body))
	copy(buf, capturePattern)
	buf[4] = 0
	buf[5] = p.HeaderType
	binary.LittleEndian.PutUint64(buf[6:], uint64(p.Granule))
	binary.LittleEndian.PutUint32(buf[14:], p.Serial)
	binary.LittleEndian.PutUint32(buf[18:], p.Sequence)
	buf[26] = byte(len(p.Segments))
	copy(buf[headerSize:], p.Segments)
	copy(buf[headerSize+len(p.Segments):], p.Body)
	binary.LittleEndian.PutUint32(buf[22:], checksum(buf))
	return buf
}

// ReadPages decodes every page in r, verifying checksums.
func ReadPages(r io.Reader) ([]*Page, error) {
	br := bufio.NewReader(r)
	var pages []*Page
	for {
		page, err := readPage(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", len(pages), err)
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

// WritePages encodes pages to w in order.
func WritePages(w io.Writer, pages []*Page) error {
	for _, p := range pages {
		if _, err := w.Write(p.Marshal()); err != nil {
			return err
		}
	}
	return nil
}

func readPage(br *bufio.Reader) (*Page, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[:4]) != string(capturePattern) {
		return nil, ErrBadCapture
	}
	if header[4] != 0 {
		return nil, ErrBadVersion
	}

	segments := make([]byte, int(header[26]))
	if _, err := io.ReadFull(br, segments); err != nil {
		return nil, fmt.Errorf("read segment table: %w", err)
	}
	bodyLen := 0
	for _, l := range segments {
		bodyLen += int(l)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page := &Page{
		HeaderType: header[5],
		Granule:    int64(binary.LittleEndian.Uint64(header[6:])),
		Serial:     binary.LittleEndian.Uint32(header[14:]),
		Sequence:   binary.LittleEndian.Uint32(header[18:]),
		Segments:   segments,
		Body:       body,
	}

	want := binary.LittleEndian.Uint32(header[22:])
	if got := binary.LittleEndian.Uint32(page.Marshal()[22:]); got != want {
		return nil, ErrBadChecksum
	}
	return page, nil
}
