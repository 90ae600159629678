package bucket

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	NameInterval       = "bucket_attribute_SpecifiedBucketInterval"
	NameSpecifiedValue = "bucket_attribute_SpecifiedBucketValue"
	NameDiscrete       = "bucket_attribute_DiscreteValue"
)

var strategyAliases = map[string]string{
	NameInterval:       NameInterval,
	"interval":         NameInterval,
	NameSpecifiedValue: NameSpecifiedValue,
	"specified_value":  NameSpecifiedValue,
	NameDiscrete:       NameDiscrete,
	"discrete":         NameDiscrete,
}

// ParseStrategy builds a Strategy from a strategy name and its setting
// string:
//
//	interval         "[-2,0,2]" breakpoints, "[(0,10),(10,20)]" tuples, or "['PER','LOC']" labels
//	specified_value  "<buckets> [s1,s2,...]" with buckets-1 split points, or "[]" for quantiles
//	discrete         "<topK> <min count>"
//
// Fields of the last two may be separated by tabs or spaces.
func ParseStrategy(name, setting string) (Strategy, error) {
	canonical, ok := strategyAliases[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
	}
	switch canonical {
	case NameInterval:
		keys, err := parseIntervals(setting)
		if err != nil {
			return nil, err
		}
		return Interval{Keys: keys}, nil
	case NameSpecifiedValue:
		head, rest := splitHead(setting)
		n, err := strconv.Atoi(head)
		if err != nil {
			return nil, fmt.Errorf("%w: bucket count %q", ErrInvalidSetting, head)
		}
		splits, err := parseNumberList(rest)
		if err != nil {
			return nil, err
		}
		if n < 1 || len(splits) > 0 && len(splits) != n-1 {
			return nil, fmt.Errorf("%w: %d buckets need %d split points, got %d", ErrInvalidSetting, n, n-1, len(splits))
		}
		sort.Float64s(splits)
		for i := 1; i < len(splits); i++ {
			if splits[i] == splits[i-1] {
				return nil, fmt.Errorf("%w: repeated split point %v", ErrInvalidSetting, splits[i])
			}
		}
		return SpecifiedValue{Buckets: n, Splits: splits}, nil
	default:
		fields := strings.Fields(setting)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: discrete setting %q needs <topK> <min count>", ErrInvalidSetting, setting)
		}
		topK, err1 := strconv.Atoi(fields[0])
		minCount, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: discrete setting %q", ErrInvalidSetting, setting)
		}
		return Discrete{TopK: topK, MinCount: minCount}, nil
	}
}

func splitHead(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func stripBrackets(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return "", fmt.Errorf("%w: expected a bracketed list, got %q", ErrInvalidSetting, s)
	}
	return strings.TrimSpace(s[1 : len(s)-1]), nil
}

func parseNumberList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	body, err := stripBrackets(s)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, item := range splitItems(body) {
		f, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrInvalidSetting, item)
		}
		out = append(out, f)
	}
	return out, nil
}

func splitItems(body string) []string {
	var out []string
	for _, item := range strings.Split(body, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// parseIntervals turns an interval setting into keys. Breakpoints b0..bn
// produce [b0,b1) ... [bn-1,bn) and a tail bucket [bn,+inf). Explicit tuples
// are half-open except the last, which is closed on the right; a singleton
// tuple is a tail bucket in last position and a point bucket elsewhere.
func parseIntervals(setting string) ([]Key, error) {
	body, err := stripBrackets(setting)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty interval list", ErrInvalidSetting)
	}
	if strings.HasPrefix(body, "(") {
		return parseTuples(body)
	}

	items := splitItems(body)
	if _, quoted := unquote(items[0]); quoted {
		keys := make([]Key, 0, len(items))
		for _, item := range items {
			label, _ := unquote(item)
			keys = append(keys, Label(label))
		}
		return keys, nil
	}

	points := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: breakpoint %q", ErrInvalidSetting, item)
		}
		if len(points) > 0 && f <= points[len(points)-1] {
			return nil, fmt.Errorf("%w: breakpoints must increase, got %v after %v", ErrInvalidSetting, f, points[len(points)-1])
		}
		points = append(points, f)
	}
	keys := make([]Key, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		keys = append(keys, Range(points[i], points[i+1], false))
	}
	return append(keys, Tail(points[len(points)-1])), nil
}

func parseTuples(body string) ([]Key, error) {
	var tuples [][]string
	for rest := body; strings.TrimSpace(rest) != ""; {
		open := strings.Index(rest, "(")
		closing := strings.Index(rest, ")")
		if open < 0 || closing < open {
			return nil, fmt.Errorf("%w: malformed tuple list %q", ErrInvalidSetting, body)
		}
		tuples = append(tuples, splitItems(rest[open+1:closing]))
		rest = strings.TrimLeft(rest[closing+1:], " ,")
	}

	keys := make([]Key, 0, len(tuples))
	for i, tuple := range tuples {
		last := i == len(tuples)-1
		switch len(tuple) {
		case 1:
			if label, quoted := unquote(tuple[0]); quoted {
				keys = append(keys, Label(label))
				continue
			}
			v, err := strconv.ParseFloat(tuple[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: tuple value %q", ErrInvalidSetting, tuple[0])
			}
			if last {
				keys = append(keys, Tail(v))
			} else {
				keys = append(keys, Point(v))
			}
		case 2:
			lo, err1 := strconv.ParseFloat(tuple[0], 64)
			hi, err2 := strconv.ParseFloat(tuple[1], 64)
			if err1 != nil || err2 != nil || hi < lo {
				return nil, fmt.Errorf("%w: interval (%s,%s)", ErrInvalidSetting, tuple[0], tuple[1])
			}
			keys = append(keys, Range(lo, hi, last))
		default:
			return nil, fmt.Errorf("%w: tuple with %d elements", ErrInvalidSetting, len(tuple))
		}
	}
	return keys, nil
}
