package tags

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is the audio container of an uploaded file. It is chosen once at
// upload time and decides which codec handles the file.
type Format int

const (
	FormatUnknown Format = iota
	FormatMP3
	FormatFLAC
	FormatM4A
	FormatOGG
	FormatOpus
)

// SniffLen is how many leading bytes Sniff wants to see.
const SniffLen = 64

// SupportedFormats lists every format a codec exists for, in menu order.
var SupportedFormats = []Format{FormatMP3, FormatFLAC, FormatM4A, FormatOGG, FormatOpus}

var extensions = map[string]Format{
	".mp3":  FormatMP3,
	".flac": FormatFLAC,
	".m4a":  FormatM4A,
	".mp4":  FormatM4A,
	".m4b":  FormatM4A,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".opus": FormatOpus,
}

func (f Format) String() string {
	switch f {
	case FormatMP3:
		return "MP3"
	case FormatFLAC:
		return "FLAC"
	case FormatM4A:
		return "M4A"
	case FormatOGG:
		return "OGG"
	case FormatOpus:
		return "OPUS"
	default:
		return "unknown"
	}
}

// Ext returns the canonical file extension, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMP3:
		return ".mp3"
	case FormatFLAC:
		return ".flac"
	case FormatM4A:
		return ".m4a"
	case FormatOGG:
		return ".ogg"
	case FormatOpus:
		return ".opus"
	default:
		return ""
	}
}

// FormatFromName picks a format from the file extension.
func FormatFromName(name string) Format {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Sniff identifies a container from its leading bytes.
func Sniff(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(header, []byte("OggS")):
		if bytes.Contains(header, []byte("OpusHead")) {
			return FormatOpus
		}
		if bytes.Contains(header, []byte("\x01vorbis")) {
			return FormatOGG
		}
		return FormatUnknown
	case len(header) >= 8 && string(header[4:8]) == "ftyp":
		return FormatM4A
	case bytes.HasPrefix(header, []byte("ID3")):
		return FormatMP3
	}
	if _, ok := parseFrameHeader(header); ok {
		return FormatMP3
	}
	return FormatUnknown
}

// Detect trusts the leading bytes over the extension: a FLAC stream named
// .mp3 is handled as FLAC. The extension decides only when sniffing finds
// nothing.
func Detect(name string, header []byte) Format {
	if sniffed := Sniff(header); sniffed != FormatUnknown {
		return sniffed
	}
	return FormatFromName(name)
}

// SameContainer reports whether a and b share a file container, so a file of
// format a may keep a name meant for b.
func SameContainer(a, b Format) bool {
	if a == b {
		return true
	}
	isOgg := func(f Format) bool { return f == FormatOGG || f == FormatOpus }
	return isOgg(a) && isOgg(b)
}

// SupportedList renders the supported formats for user-facing text.
func SupportedList() string {
	names := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
