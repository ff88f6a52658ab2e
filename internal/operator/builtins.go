package operator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

func registerBuiltins(r *Registry) {
	r.Register(&Definition{
		Name:         "streq",
		Capabilities: CapPhase | CapStream,
		Create:       createLiteralParam,
		Eval:         evalStreq,
	})
	r.Register(&Definition{
		Name:         "contains",
		Capabilities: CapPhase | CapStream,
		Create:       createLiteralParam,
		Eval:         evalContains,
	})
	r.Register(&Definition{
		Name:         "ipmatch",
		Capabilities: CapPhase | CapStream | CapAllowNull,
		Create:       createLiteralParam,
		Eval:         evalIPMatch,
	})
	r.Register(&Definition{
		Name:         "eq",
		Capabilities: CapPhase | CapStream,
		Create:       createNumericParam,
		Eval:         evalNumericCompare(func(a, b float64) bool { return a == b }),
	})
	r.Register(&Definition{
		Name:         "gt",
		Capabilities: CapPhase | CapStream,
		Create:       createNumericParam,
		Eval:         evalNumericCompare(func(a, b float64) bool { return a > b }),
	})
	r.Register(&Definition{
		Name:         "lt",
		Capabilities: CapPhase | CapStream,
		Create:       createNumericParam,
		Eval:         evalNumericCompare(func(a, b float64) bool { return a < b }),
	})
	r.Register(&Definition{
		Name:         "ge",
		Capabilities: CapPhase | CapStream,
		Create:       createNumericParam,
		Eval:         evalNumericCompare(func(a, b float64) bool { return a >= b }),
	})
	r.Register(&Definition{
		Name:         "le",
		Capabilities: CapPhase | CapStream,
		Create:       createNumericParam,
		Eval:         evalNumericCompare(func(a, b float64) bool { return a <= b }),
	})
	r.Register(&Definition{
		Name:         "pcre",
		Capabilities: CapPhase | CapStream | CapCaptureSupported,
		Create:       createPCREParam,
		Eval:         evalPCRE,
	})
	r.Register(&Definition{
		Name:         "rx",
		Capabilities: CapPhase | CapStream | CapCaptureSupported,
		Create:       createPCREParam,
		Eval:         evalPCRE,
	})
	r.Register(&Definition{
		Name:         "istrue",
		Capabilities: CapPhase | CapStream | CapAllowNull,
		Create:       nil,
		Eval:         evalIsTrue,
	})
}

func createLiteralParam(a *arena.Arena, param string) (any, status.Status) {
	return param, status.Ok()
}

func fieldToStr(f *field.Field) (string, bool) {
	if field.IsNull(f) || f.Type != field.TypeByteStr {
		return "", false
	}
	return string(f.Bytes), true
}

func evalStreq(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
	want, _ := data.(string)
	got, ok := fieldToStr(in)
	if !ok {
		return 0, nil, status.Ok()
	}
	if got == want {
		return 1, nil, status.Ok()
	}
	return 0, nil, status.Ok()
}

func evalContains(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
	want, _ := data.(string)
	got, ok := fieldToStr(in)
	if !ok {
		return 0, nil, status.Ok()
	}
	if strings.Contains(got, want) {
		return 1, nil, status.Ok()
	}
	return 0, nil, status.Ok()
}

// evalIPMatch performs a literal/CIDR-less membership test against a
// comma-separated list of exact addresses; full CIDR matching belongs to a
// pattern-match module, out of scope per spec §1.
func evalIPMatch(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
	list, _ := data.(string)
	got, ok := fieldToStr(in)
	if !ok {
		return 0, nil, status.Ok()
	}
	for _, candidate := range strings.Split(list, ",") {
		if strings.TrimSpace(candidate) == got {
			return 1, nil, status.Ok()
		}
	}
	return 0, nil, status.Ok()
}

func createNumericParam(a *arena.Arena, param string) (any, status.Status) {
	n, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
	if err != nil {
		return nil, status.BadValue(fmt.Sprintf("not a number: %q", param))
	}
	return n, status.Ok()
}

func evalNumericCompare(cmp func(a, b float64) bool) EvalFunc {
	return func(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
		want, _ := data.(float64)
		if field.IsNull(in) || in.Type != field.TypeNum {
			return 0, nil, status.Ok()
		}
		if cmp(in.Num, want) {
			return 1, nil, status.Ok()
		}
		return 0, nil, status.Ok()
	}
}

func evalIsTrue(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
	if field.IsNull(in) {
		return 0, nil, status.Ok()
	}
	switch in.Type {
	case field.TypeNum:
		if in.Num != 0 {
			return 1, nil, status.Ok()
		}
	case field.TypeByteStr:
		if len(in.Bytes) > 0 {
			return 1, nil, status.Ok()
		}
	case field.TypeList:
		if len(in.List) > 0 {
			return 1, nil, status.Ok()
		}
	}
	return 0, nil, status.Ok()
}

// regexCache holds compiled regexp2 patterns keyed by pattern source,
// shared across all pcre/rx instances in the process — compilation is
// comparatively expensive and patterns repeat heavily across a rule set.
var regexCache, _ = lru.New[string, *regexp2.Regexp](512)

func compileRegex(pattern string) (*regexp2.Regexp, error) {
	if re, ok := regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	regexCache.Add(pattern, re)
	return re, nil
}

func createPCREParam(a *arena.Arena, param string) (any, status.Status) {
	re, err := compileRegex(param)
	if err != nil {
		return nil, status.BadValue(fmt.Sprintf("invalid pattern %q: %v", param, err))
	}
	return re, status.Ok()
}

// evalPCRE matches in against the compiled pattern using dlclark/regexp2,
// which supports PCRE-style backreferences and lookaround that Go's
// stdlib regexp (RE2) cannot express — needed for the rule sets this
// engine is meant to run (ported ModSecurity-style patterns). Per spec
// S3, group 0 (whole match) and group 1 are both written to CAPTURE.
func evalPCRE(a *arena.Arena, data any, in *field.Field) (int, []*field.Field, status.Status) {
	re, _ := data.(*regexp2.Regexp)
	got, ok := fieldToStr(in)
	if !ok {
		return 0, nil, status.Ok()
	}
	m, err := re.FindStringMatch(got)
	if err != nil {
		return 0, nil, status.Other("regex evaluation failed", err)
	}
	if m == nil {
		return 0, nil, status.Ok()
	}
	groups := m.Groups()
	capture := make([]*field.Field, 0, len(groups))
	for i, g := range groups {
		capture = append(capture, field.NewByteStr(fmt.Sprintf("CAPTURE:%d", i), []byte(g.String())))
	}
	return 1, capture, status.Ok()
}
