package bucket

import (
	"strconv"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"
)

type KeyKind int

const (
	// KindRange covers [Lo, Hi), or [Lo, Hi] when Closed is set.
	KindRange KeyKind = iota
	// KindPoint holds exactly Lo.
	KindPoint
	// KindTail covers [Lo, +inf).
	KindTail
	// KindLabel holds one categorical value.
	KindLabel
	// KindOther collects whatever no earlier key in the set claimed.
	KindOther
)

// OtherLabel names the catch-all bucket of the discrete strategy.
const OtherLabel = "other"

// Key identifies a bucket. Keys are comparable and usable as map keys.
type Key struct {
	Kind   KeyKind
	Lo     float64
	Hi     float64
	Closed bool
	Label  string
}

func Range(lo, hi float64, closed bool) Key {
	return Key{Kind: KindRange, Lo: lo, Hi: hi, Closed: closed}
}

func Point(v float64) Key { return Key{Kind: KindPoint, Lo: v} }

func Tail(v float64) Key { return Key{Kind: KindTail, Lo: v} }

func Label(s string) Key { return Key{Kind: KindLabel, Label: s} }

func Other() Key { return Key{Kind: KindOther, Label: OtherLabel} }

// Numeric reports whether the key is ordered by its lower bound.
func (k Key) Numeric() bool {
	return k.Kind == KindRange || k.Kind == KindPoint || k.Kind == KindTail
}

// Contains applies the key's membership rule to v.
func (k Key) Contains(v aspect.Value) bool {
	switch k.Kind {
	case KindRange:
		if v.Categorical {
			return false
		}
		return v.Num >= k.Lo && (v.Num < k.Hi || k.Closed && v.Num == k.Hi)
	case KindPoint:
		return !v.Categorical && v.Num == k.Lo
	case KindTail:
		return !v.Categorical && v.Num >= k.Lo
	case KindLabel:
		return v.String() == k.Label
	case KindOther:
		return true
	}
	return false
}

// Name renders the key for reports: "(lo,hi)" and "(v,)" with three
// significant digits, labels unchanged.
func (k Key) Name() string {
	switch k.Kind {
	case KindRange:
		return "(" + sig3(k.Lo) + "," + sig3(k.Hi) + ")"
	case KindPoint, KindTail:
		return "(" + sig3(k.Lo) + ",)"
	default:
		return k.Label
	}
}

func (k Key) String() string { return k.Name() }

func sig3(f float64) string {
	return strconv.FormatFloat(f, 'g', 3, 64)
}
