// Package compiler implements the regex-to-DFA compilation pipeline and
// the code generators that emit Go realizations of a compiled machine.
package compiler

// Tag identifies the kind of a regex node.
type Tag int

const (
	TagByte Tag = iota // single byte
	TagRange           // contiguous byte range
	TagChar            // one character, as its UTF-8 byte sequence
	TagStr             // string literal, as its UTF-8 byte sequence
	TagBytes           // raw byte sequence
	TagSet             // arbitrary byte set
	TagClass           // character class: union of byte sets
	TagCClass          // complemented character class
	TagCat             // concatenation; empty cat is epsilon
	TagAlt             // alternation
	TagRep             // zero or more
	TagRep1            // one or more
	TagOpt             // zero or one
	TagIsec            // language intersection
	TagDiff            // language difference
	TagNeg             // language complement relative to any*
)

// Event identifies where an action binding fires relative to a regex.
type Event int

const (
	EventEnter Event = iota // on transitions into the fragment
	EventExit               // on transitions out of the fragment
	EventFinal              // on transitions consuming the fragment's last byte
	EventAll                // on every transition within the fragment
)

func (e Event) String() string {
	switch e {
	case EventEnter:
		return "enter"
	case EventExit:
		return "exit"
	case EventFinal:
		return "final"
	case EventAll:
		return "all"
	}
	return "unknown"
}

// Polarity is the required value of a precondition guard.
type Polarity int

const (
	PolarityTrue Polarity = iota
	PolarityFalse
	PolarityBoth // satisfied either way; never constrains a transition
)

// PrecondWhen selects which transitions of a fragment a guard applies to.
type PrecondWhen int

const (
	PrecondEnter PrecondWhen = iota // transitions into the fragment
	PrecondAll                      // every transition within the fragment
)

// Precond is a named host-supplied boolean gate with a required polarity.
type Precond struct {
	Name     string
	Polarity Polarity
}

// Regex is an annotated regular expression tree over byte strings.
// Nodes are immutable after annotation; the compile pipeline consumes
// them without mutation.
type Regex struct {
	tag  Tag
	args []*Regex

	set     ByteSet   // TagByte, TagRange, TagSet payload
	lit     []byte    // TagChar, TagStr, TagBytes payload
	classes []ByteSet // TagClass, TagCClass payload

	actions      map[Event][]string
	precondEnter *Precond
	precondAll   *Precond

	source string // surface pattern, when built by the parser
}

// Tag returns the node's kind.
func (re *Regex) Tag() Tag { return re.tag }

// Source returns the surface pattern this regex was parsed from, or "".
func (re *Regex) Source() string { return re.source }

// ByteSetOf returns a regex matching exactly the bytes in s.
func ByteSetOf(s ByteSet) *Regex {
	return &Regex{tag: TagSet, set: s}
}

// Byte returns a regex matching the single byte b.
func Byte(b byte) *Regex {
	return &Regex{tag: TagByte, set: NewByteSet(b)}
}

// Range returns a regex matching any byte in the inclusive range [lo, hi].
func Range(lo, hi byte) *Regex {
	return &Regex{tag: TagRange, set: NewByteRange(lo, hi)}
}

// Char returns a regex matching the UTF-8 byte sequence of r.
func Char(r rune) *Regex {
	return &Regex{tag: TagChar, lit: []byte(string(r))}
}

// Str returns a regex matching the UTF-8 bytes of s in sequence.
func Str(s string) *Regex {
	return &Regex{tag: TagStr, lit: []byte(s)}
}

// Bytes returns a regex matching the given bytes in sequence.
func Bytes(bs []byte) *Regex {
	lit := make([]byte, len(bs))
	copy(lit, bs)
	return &Regex{tag: TagBytes, lit: lit}
}

// Class returns a regex matching any byte in the union of the given sets.
func Class(sets ...ByteSet) *Regex {
	return &Regex{tag: TagClass, classes: sets}
}

// CClass returns a regex matching any byte outside the union of the sets.
func CClass(sets ...ByteSet) *Regex {
	return &Regex{tag: TagCClass, classes: sets}
}

// Any returns a regex matching any single byte.
func Any() *Regex {
	return Range(0x00, 0xff)
}

// Epsilon returns a regex matching only the empty string.
func Epsilon() *Regex {
	return &Regex{tag: TagCat}
}

// Cat returns the concatenation of res, in order.
func Cat(res ...*Regex) *Regex {
	return &Regex{tag: TagCat, args: res}
}

// Alt returns the alternation of a and b.
func Alt(a, b *Regex) *Regex {
	return &Regex{tag: TagAlt, args: []*Regex{a, b}}
}

// Rep returns zero-or-more repetition of a.
func Rep(a *Regex) *Regex {
	return &Regex{tag: TagRep, args: []*Regex{a}}
}

// Rep1 returns one-or-more repetition of a.
func Rep1(a *Regex) *Regex {
	return &Regex{tag: TagRep1, args: []*Regex{a}}
}

// Opt returns the optional form of a.
func Opt(a *Regex) *Regex {
	return &Regex{tag: TagOpt, args: []*Regex{a}}
}

// Isec returns the language intersection of a and b.
func Isec(a, b *Regex) *Regex {
	return &Regex{tag: TagIsec, args: []*Regex{a, b}}
}

// Diff returns the language of a minus the language of b.
func Diff(a, b *Regex) *Regex {
	return &Regex{tag: TagDiff, args: []*Regex{a, b}}
}

// Neg returns the complement of a relative to any*.
func Neg(a *Regex) *Regex {
	return &Regex{tag: TagNeg, args: []*Regex{a}}
}

// OnEnter appends actions fired on every transition into re's fragment.
func OnEnter(re *Regex, names ...string) *Regex {
	re.addActions(EventEnter, names)
	return re
}

// OnExit appends actions fired on every transition out of re's fragment,
// including completion at end of input.
func OnExit(re *Regex, names ...string) *Regex {
	re.addActions(EventExit, names)
	return re
}

// OnFinal appends actions fired on every transition consuming re's last
// byte. Compilation fails if re has no definite last byte.
func OnFinal(re *Regex, names ...string) *Regex {
	re.addActions(EventFinal, names)
	return re
}

// OnAll appends actions fired on every transition within re's fragment.
func OnAll(re *Regex, names ...string) *Regex {
	re.addActions(EventAll, names)
	return re
}

func (re *Regex) addActions(ev Event, names []string) {
	if re.actions == nil {
		re.actions = make(map[Event][]string)
	}
	re.actions[ev] = append(re.actions[ev], names...)
}

// SetPrecond attaches a named guard to re. Guards with when == PrecondEnter
// gate transitions into the fragment; when == PrecondAll gates every
// transition within it.
func SetPrecond(re *Regex, name string, when PrecondWhen, polarity Polarity) *Regex {
	p := &Precond{Name: name, Polarity: polarity}
	if when == PrecondEnter {
		re.precondEnter = p
	} else {
		re.precondAll = p
	}
	return re
}

// Actions returns the action names bound for the given event.
func (re *Regex) Actions(ev Event) []string {
	return re.actions[ev]
}

// cloneAnnotationsOnto copies re's annotations onto target without
// aliasing the maps. Desugaring uses it to move annotations onto a
// rewritten root.
func (re *Regex) cloneAnnotationsOnto(target *Regex) *Regex {
	if re.actions != nil {
		if target.actions == nil {
			target.actions = make(map[Event][]string, len(re.actions))
		}
		for ev, names := range re.actions {
			target.actions[ev] = append(target.actions[ev], names...)
		}
	}
	if re.precondEnter != nil {
		target.precondEnter = re.precondEnter
	}
	if re.precondAll != nil {
		target.precondAll = re.precondAll
	}
	target.source = re.source
	return target
}
