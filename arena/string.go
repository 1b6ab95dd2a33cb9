package arena

// String values longer than InlineLen bytes are stored as a chain: the head
// cell holds the first InlineLen bytes and each StringExt continuation,
// linked through LastChild, holds up to InlineLen more.

// NewString allocates a string cell holding s, chaining continuation cells
// as needed.
func (a *Arena) NewString(s string) (Handle, error) {
	return a.newTextCell(KindString, s)
}

// newTextCell builds a string-like chain of the given head kind.
// FunctionParam heads share the chain representation with plain strings.
func (a *Arena) newTextCell(kind Kind, s string) (Handle, error) {
	head, err := a.alloc(kind)
	if err != nil {
		return None, err
	}

	if err := a.appendText(head, s); err != nil {
		a.Unref(head)
		return None, err
	}

	return head, nil
}

// AppendString appends s to the string at h, extending the continuation
// chain as needed.
func (a *Arena) AppendString(h Handle, s string) error {
	if !a.Valid(h) || !a.cell(h).isStringLike() {
		return ErrBadHandle
	}

	return a.appendText(h, s)
}

func (a *Arena) appendText(h Handle, s string) error {
	// Find the tail segment.
	tail := h
	for a.cell(tail).LastChild != None {
		tail = a.cell(tail).LastChild
	}

	for len(s) > 0 {
		c := a.cell(tail)
		room := InlineLen - int(c.Length)
		if room == 0 {
			ext, err := a.alloc(KindStringExt)
			if err != nil {
				return err
			}
			a.cell(tail).LastChild = ext
			tail = ext
			c = a.cell(tail)
			room = InlineLen
		}
		n := min(room, len(s))
		copy(c.Data[c.Length:], s[:n])
		c.Length += uint8(n)
		s = s[n:]
	}

	return nil
}

// StringLen returns the total byte length of the string at h, summed across
// the continuation chain.
func (a *Arena) StringLen(h Handle) int {
	n := 0
	for seg := h; seg != None; seg = a.cell(seg).LastChild {
		c := a.cell(seg)
		if !c.isStringLike() {
			break
		}
		n += int(c.Length)
	}

	return n
}

// StringValue returns the text stored in the string chain at h.
func (a *Arena) StringValue(h Handle) string {
	var out []byte
	for seg := h; seg != None; seg = a.cell(seg).LastChild {
		c := a.cell(seg)
		if !c.isStringLike() {
			break
		}
		out = append(out, c.Data[:c.Length]...)
	}

	return string(out)
}

// StringEqual reports whether the string at h equals s, without
// materializing the chain.
func (a *Arena) StringEqual(h Handle, s string) bool {
	for seg := h; seg != None; seg = a.cell(seg).LastChild {
		c := a.cell(seg)
		if !c.isStringLike() {
			return false
		}
		n := int(c.Length)
		if len(s) < n || string(c.Data[:n]) != s[:n] {
			return false
		}
		s = s[n:]
	}

	return len(s) == 0
}

// CharAt returns the byte at index idx of the string at h, walking the
// continuation chain. ok is false when idx is out of range.
func (a *Arena) CharAt(h Handle, idx int) (byte, bool) {
	if idx < 0 {
		return 0, false
	}
	seg := h
	for seg != None && idx >= InlineLen {
		idx -= InlineLen
		seg = a.cell(seg).LastChild
	}
	if seg == None {
		return 0, false
	}
	c := a.cell(seg)
	if !c.isStringLike() || idx >= int(c.Length) {
		return 0, false
	}

	return c.Data[idx], true
}

// StringIter iterates the bytes of a string chain without allocating.
type StringIter struct {
	a   *Arena
	seg Handle
	pos int
}

// Chars returns an iterator over the bytes of the string at h.
func (a *Arena) Chars(h Handle) StringIter {
	return StringIter{a: a, seg: h}
}

// Next returns the next byte of the chain; ok is false once the chain is
// exhausted.
func (it *StringIter) Next() (byte, bool) {
	for it.seg != None {
		c := it.a.cell(it.seg)
		if !c.isStringLike() {
			return 0, false
		}
		if it.pos < int(c.Length) {
			b := c.Data[it.pos]
			it.pos++

			return b, true
		}
		it.seg = c.LastChild
		it.pos = 0
	}

	return 0, false
}
