package tagtest

import (
	"bytes"
	"encoding/binary"
)

// m4aAudio stands in for one AAC access unit.
var m4aAudio = bytes.Repeat([]byte{0x21}, 16)

// M4A returns a single-track AAC file laid out ftyp, moov, mdat with an
// empty iTunes item list.
func M4A() []byte {
	return m4a()
}

// M4AWithGenre is M4A carrying only a standard gnre item, the 1-based ID3v1
// genre index older taggers write instead of ©gen.
func M4AWithGenre(id uint16) []byte {
	value := binary.BigEndian.AppendUint16(nil, id)
	return m4a(box("gnre", box("data", []byte{0, 0, 0, 0}, []byte{0, 0, 0, 0}, value)))
}

func m4a(items ...[]byte) []byte {
	ftyp := box("ftyp", []byte("M4A "), u32(0x200), []byte("M4A mp42isom"))

	// the chunk offset is patched once the moov size is known
	build := func(chunkOffset uint32) []byte {
		return box("moov",
			fullBox("mvhd", u32(0), u32(0), u32(44100), u32(1024), u32(0x00010000), []byte{0x01, 0x00}, make([]byte, 10), matrix(), make([]byte, 24), u32(2)),
			box("trak",
				fullBox("tkhd", u32(0), u32(0), u32(1), u32(0), u32(1024), make([]byte, 8), make([]byte, 4), []byte{0x01, 0x00, 0, 0}, matrix(), u32(0), u32(0)),
				box("mdia",
					fullBox("mdhd", u32(0), u32(0), u32(44100), u32(1024), []byte{0x55, 0xc4, 0, 0}),
					fullBox("hdlr", u32(0), []byte("soun"), make([]byte, 12), []byte("SoundHandler\x00")),
					box("minf",
						fullBox("smhd", make([]byte, 4)),
						box("dinf", fullBox("dref", u32(1), []byte{0, 0, 0, 12}, []byte("url "), []byte{0, 0, 0, 1})),
						box("stbl",
							fullBox("stsd", u32(1), box("mp4a", make([]byte, 6), []byte{0, 1}, make([]byte, 8), []byte{0, 2, 0, 16}, make([]byte, 4), u32(44100<<16))),
							fullBox("stts", u32(1), u32(1), u32(1024)),
							fullBox("stsc", u32(1), u32(1), u32(1), u32(1)),
							fullBox("stsz", u32(0), u32(1), u32(uint32(len(m4aAudio)))),
							fullBox("stco", u32(1), u32(chunkOffset)),
						),
					),
				),
			),
			box("udta",
				fullBox("meta",
					fullBox("hdlr", u32(0), []byte("mdir"), []byte("appl"), make([]byte, 8), []byte{0}),
					box("ilst", items...),
				),
			),
		)
	}

	moov := build(0)
	moov = build(uint32(len(ftyp) + len(moov) + 8))

	var buf bytes.Buffer
	buf.Write(ftyp)
	buf.Write(moov)
	buf.Write(box("mdat", m4aAudio))
	return buf.Bytes()
}

func box(kind string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	out := u32(uint32(8 + len(body)))
	out = append(out, kind...)
	return append(out, body...)
}

// fullBox prefixes a zero version and flags word.
func fullBox(kind string, payload ...[]byte) []byte {
	return box(kind, append([][]byte{u32(0)}, payload...)...)
}

func matrix() []byte {
	m := make([]byte, 0, 36)
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		m = append(m, u32(v)...)
	}
	return m
}

func u32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}
