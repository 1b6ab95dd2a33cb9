package arena

import "github.com/minivm/cello/endian"

// Handle identifies a cell within an arena. Handles are 1-based; None (0)
// never refers to live data.
type Handle uint32

// None is the reserved "no reference" handle.
const None Handle = 0

// Kind tags the value stored in a cell.
type Kind uint8

const (
	KindFree          Kind = iota // unallocated, on the free list
	KindNull                      // the null value
	KindUndefined                 // the undefined value
	KindInt                       // 64-bit signed integer
	KindFloat                     // 64-bit float
	KindString                    // short string, possibly continued via StringExt
	KindStringExt                 // continuation segment of a longer string
	KindArray                     // array; children are bare element cells
	KindObject                    // object; children are name cells
	KindArrayBuffer               // raw byte buffer / typed view backing
	KindFunction                  // function; children are params plus the body cell
	KindFunctionParam             // function parameter name
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "Free"
	case KindNull:
		return "Null"
	case KindUndefined:
		return "Undefined"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindStringExt:
		return "StringExt"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	case KindArrayBuffer:
		return "ArrayBuffer"
	case KindFunction:
		return "Function"
	case KindFunctionParam:
		return "FunctionParam"
	default:
		return "Unknown"
	}
}

const (
	// InlineLen is the number of payload bytes a single cell can hold.
	// Strings longer than this chain StringExt cells through LastChild,
	// each carrying up to InlineLen more bytes.
	InlineLen = 8

	// CellSize is the marshalled size of one cell in the arena image.
	CellSize = 24
)

// Marshalled cell layout (little-endian):
//
//	offset 0   Kind        uint8
//	offset 1   Refs        uint8
//	offset 2   Length      uint8 (inline payload bytes in use)
//	offset 3   reserved    (zero)
//	offset 4   FirstChild  uint32
//	offset 8   LastChild   uint32
//	offset 12  NextSibling uint32
//	offset 16  Data        [8]byte
const (
	offKind        = 0
	offRefs        = 1
	offLength      = 2
	offFirstChild  = 4
	offLastChild   = 8
	offNextSibling = 12
	offData        = 16
)

// Cell is the atomic heap unit: a tagged payload plus three structural links.
//
// FirstChild and NextSibling form the singly linked child lists of arrays,
// objects and functions. For string-like cells LastChild instead links the
// next continuation segment; for containers it caches the list tail.
type Cell struct {
	Kind        Kind
	Refs        uint8
	Length      uint8
	FirstChild  Handle
	LastChild   Handle
	NextSibling Handle
	Data        [InlineLen]byte
}

// isStringLike reports whether the cell's payload is inline text that may
// continue through a LastChild chain.
func (c *Cell) isStringLike() bool {
	switch c.Kind {
	case KindString, KindStringExt, KindFunctionParam:
		return true
	default:
		return false
	}
}

// marshal writes the cell into dst, which must be at least CellSize bytes.
func (c *Cell) marshal(dst []byte, engine endian.EndianEngine) {
	dst[offKind] = byte(c.Kind)
	dst[offRefs] = c.Refs
	dst[offLength] = c.Length
	dst[3] = 0
	engine.PutUint32(dst[offFirstChild:], uint32(c.FirstChild))
	engine.PutUint32(dst[offLastChild:], uint32(c.LastChild))
	engine.PutUint32(dst[offNextSibling:], uint32(c.NextSibling))
	copy(dst[offData:offData+InlineLen], c.Data[:])
}

// unmarshal reads the cell from src, which must be at least CellSize bytes.
func (c *Cell) unmarshal(src []byte, engine endian.EndianEngine) {
	c.Kind = Kind(src[offKind])
	c.Refs = src[offRefs]
	c.Length = src[offLength]
	c.FirstChild = Handle(engine.Uint32(src[offFirstChild:]))
	c.LastChild = Handle(engine.Uint32(src[offLastChild:]))
	c.NextSibling = Handle(engine.Uint32(src[offNextSibling:]))
	copy(c.Data[:], src[offData:offData+InlineLen])
}
