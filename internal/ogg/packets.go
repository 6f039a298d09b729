package ogg

// HeaderPackets reassembles the first n packets of the stream. The n-th packet
// must finish its page; the returned index is the first page after it.
func HeaderPackets(pages []*Page, n int) ([][]byte, int, error) {
	if len(pages) == 0 {
		return nil, 0, ErrNoPages
	}
	serial := pages[0].Serial

	var packets [][]byte
	var cur []byte
	for i, p := range pages {
		if p.Serial != serial {
			return nil, 0, ErrMultiplexed
		}
		off := 0
		for j, l := range p.Segments {
			cur = append(cur, p.Body[off:off+int(l)]...)
			off += int(l)
			if l == maxLacing {
				continue
			}
			if cur == nil {
				cur = []byte{}
			}
			packets = append(packets, cur)
			cur = nil
			if len(packets) == n {
				if j != len(p.Segments)-1 {
					return nil, 0, ErrUnaligned
				}
				return packets, i + 1, nil
			}
		}
	}
	return nil, 0, ErrTruncated
}

// Paginate lays packets out back to back over as many pages as needed. The
// last packet ends the last page. headerType is applied to the first page only.
func Paginate(packets [][]byte, serial, sequence uint32, headerType byte) []*Page {
	var pages []*Page
	page := &Page{HeaderType: headerType, Granule: -1, Serial: serial, Sequence: sequence}

	flush := func(continued bool) {
		pages = append(pages, page)
		sequence++
		page = &Page{Granule: -1, Serial: serial, Sequence: sequence}
		if continued {
			page.HeaderType |= FlagContinued
		}
	}

	for _, pkt := range packets {
		rest := pkt
		mid := false
		for {
			if len(page.Segments) == maxSegments {
				flush(mid)
			}
			n := len(rest)
			if n > maxLacing {
				n = maxLacing
			}
			page.Segments = append(page.Segments, byte(n))
			page.Body = append(page.Body, rest[:n]...)
			rest = rest[n:]
			mid = true
			if n < maxLacing {
				// header pages carry granule 0 once a packet finishes on them
				page.Granule = 0
				break
			}
		}
	}
	if len(page.Segments) > 0 {
		pages = append(pages, page)
	}
	return pages
}

// RewriteHeaders replaces the first n header packets of a single logical
// stream. The first packet keeps a page of its own; later pages of the stream
// are renumbered so sequence numbers stay contiguous.
func RewriteHeaders(pages []*Page, n int, rewrite func([][]byte) ([][]byte, error)) ([]*Page, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	if pages[0].HeaderType&FlagBOS == 0 {
		return nil, ErrMissingStart
	}
	packets, next, err := HeaderPackets(pages, n)
	if err != nil {
		return nil, err
	}
	packets, err = rewrite(packets)
	if err != nil {
		return nil, err
	}

	serial := pages[0].Serial
	out := Paginate(packets[:1], serial, 0, FlagBOS)
	out = append(out, Paginate(packets[1:], serial, uint32(len(out)), 0)...)

	seq := uint32(len(out))
	for _, p := range pages[next:] {
		if p.Serial == serial {
			p.Sequence = seq
			seq++
		}
		out = append(out, p)
	}
	return out, nil
}
