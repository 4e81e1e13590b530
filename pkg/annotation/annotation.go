// Package annotation pairs switch and diode reference designators by
// the ordinal embedded in them. The ordered pair list is the
// schematic-side input to placement: pair i is joined positionally
// with layout key i.
package annotation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrScheme is wrapped when a switch reference has no unambiguous
// diode partner under the selected scheme.
var ErrScheme = errors.New("annotation scheme mismatch")

// Scheme selects how diode ordinals relate to switch ordinals.
type Scheme int

const (
	// SchemeShared pairs references with identical ordinals:
	// SW7 with D7.
	SchemeShared Scheme = iota

	// SchemeStride pairs a switch with the diode whose ordinal is
	// offset by a fixed stride: SW1 with D2 at stride 1.
	SchemeStride
)

func (s Scheme) String() string {
	if s == SchemeStride {
		return "stride"
	}
	return "shared"
}

// ParseScheme maps a configuration value to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "shared", "":
		return SchemeShared, nil
	case "stride":
		return SchemeStride, nil
	default:
		return SchemeShared, fmt.Errorf("unknown annotation scheme %q (want shared or stride)", name)
	}
}

// Options configures reference formats and the stride scheme offset.
type Options struct {
	SwitchFormat string // reference template with a {} ordinal hole, default SW{}
	DiodeFormat  string // default D{}
	Stride       int    // diode ordinal offset for SchemeStride, default 1
}

// DefaultOptions returns the common matrix keyboard conventions.
func DefaultOptions() Options {
	return Options{SwitchFormat: "SW{}", DiodeFormat: "D{}", Stride: 1}
}

func (o *Options) fill() {
	if o.SwitchFormat == "" {
		o.SwitchFormat = "SW{}"
	}
	if o.DiodeFormat == "" {
		o.DiodeFormat = "D{}"
	}
	if o.Stride == 0 {
		o.Stride = 1
	}
}

// Pair is one resolved switch/diode association.
type Pair struct {
	SwitchRef string
	DiodeRef  string
	Ordinal   int
}

// Skip records a switch reference excluded from pairing and why.
type Skip struct {
	Ref string
	Err error
}

// Resolution is the outcome of pairing: pairs in ascending ordinal
// order plus the per-reference exclusions.
type Resolution struct {
	Pairs   []Pair
	Skipped []Skip
}

// Format substitutes an ordinal into a reference template.
func Format(template string, ordinal int) string {
	return strings.Replace(template, "{}", strconv.Itoa(ordinal), 1)
}

// matcher compiles a reference template into an anchored regexp with
// one ordinal capture.
func matcher(template string) (*regexp.Regexp, error) {
	if strings.Count(template, "{}") != 1 {
		return nil, fmt.Errorf("reference format %q must contain exactly one {}", template)
	}
	pattern := "^" + strings.Replace(regexp.QuoteMeta(template), regexp.QuoteMeta("{}"), `(\d+)`, 1) + "$"
	return regexp.Compile(pattern)
}

// Resolve pairs every switch reference in refs with its diode under
// the selected scheme. Switches without exactly one diode candidate,
// and switches sharing an ordinal, land in Skipped instead of Pairs.
// Resolve fails only for invalid configuration.
func Resolve(refs []string, scheme Scheme, opts Options) (*Resolution, error) {
	opts.fill()

	switchRe, err := matcher(opts.SwitchFormat)
	if err != nil {
		return nil, err
	}
	diodeRe, err := matcher(opts.DiodeFormat)
	if err != nil {
		return nil, err
	}

	switches := map[int][]string{}
	diodes := map[int][]string{}
	for _, ref := range refs {
		if m := switchRe.FindStringSubmatch(ref); m != nil {
			ord, _ := strconv.Atoi(m[1])
			switches[ord] = append(switches[ord], ref)
			continue
		}
		if m := diodeRe.FindStringSubmatch(ref); m != nil {
			ord, _ := strconv.Atoi(m[1])
			diodes[ord] = append(diodes[ord], ref)
		}
	}

	ordinals := make([]int, 0, len(switches))
	for ord := range switches {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)

	res := &Resolution{}
	for _, ord := range ordinals {
		sws := switches[ord]
		if len(sws) > 1 {
			for _, ref := range sws {
				res.Skipped = append(res.Skipped, Skip{
					Ref: ref,
					Err: fmt.Errorf("%w: duplicate switch ordinal %d", ErrScheme, ord),
				})
			}
			continue
		}

		want := ord
		if scheme == SchemeStride {
			want = ord + opts.Stride
		}

		candidates := diodes[want]
		switch len(candidates) {
		case 1:
			res.Pairs = append(res.Pairs, Pair{SwitchRef: sws[0], DiodeRef: candidates[0], Ordinal: ord})
		case 0:
			res.Skipped = append(res.Skipped, Skip{
				Ref: sws[0],
				Err: fmt.Errorf("%w: no diode with ordinal %d", ErrScheme, want),
			})
		default:
			res.Skipped = append(res.Skipped, Skip{
				Ref: sws[0],
				Err: fmt.Errorf("%w: %d diodes share ordinal %d", ErrScheme, len(candidates), want),
			})
		}
	}

	return res, nil
}
