package txfn

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

func registerBuiltins(r *Registry) {
	r.Register("trim", trim)
	r.Register("trimleft", trimLeft)
	r.Register("trimright", trimRight)
	r.Register("lowercase", lowercase)
	r.Register("uppercase", uppercase)
	r.Register("length", length)
	r.Register("urldecode", urlDecode)
	r.Register("htmlentitydecode", htmlEntityDecode)
	r.Register("base64decode", base64Decode)
	r.Register("base64encode", base64Encode)
	r.Register("removewhitespace", removeWhitespace)
	r.Register("compressWhitespace", compressWhitespace)
	r.Register("none", none)
}

func byteStrOnly(in *field.Field) ([]byte, bool) {
	if in == nil || in.Type != field.TypeByteStr {
		return nil, false
	}
	return in.Bytes, true
}

func trim(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	out := bytes.TrimSpace(b)
	return field.NewByteStr(in.Name, out), Flags{Modified: len(out) != len(b)}, status.Ok()
}

func trimLeft(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	out := bytes.TrimLeft(b, " \t\r\n")
	return field.NewByteStr(in.Name, out), Flags{Modified: len(out) != len(b)}, status.Ok()
}

func trimRight(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	out := bytes.TrimRight(b, " \t\r\n")
	return field.NewByteStr(in.Name, out), Flags{Modified: len(out) != len(b)}, status.Ok()
}

func lowercase(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	return field.NewByteStr(in.Name, bytes.ToLower(b)), Flags{Modified: true}, status.Ok()
}

func uppercase(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	return field.NewByteStr(in.Name, bytes.ToUpper(b)), Flags{Modified: true}, status.Ok()
}

func length(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	switch in.Type {
	case field.TypeByteStr:
		return field.NewNum(in.Name, float64(len(in.Bytes))), Flags{Modified: true}, status.Ok()
	case field.TypeList:
		return field.NewNum(in.Name, float64(len(in.List))), Flags{Modified: true}, status.Ok()
	default:
		return in, Flags{}, status.Ok()
	}
}

func urlDecode(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	decoded, err := url.QueryUnescape(string(b))
	if err != nil {
		return field.NewByteStr(in.Name, b), Flags{}, status.Ok()
	}
	return field.NewByteStr(in.Name, []byte(decoded)), Flags{Modified: decoded != string(b)}, status.Ok()
}

func base64Decode(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	decoded, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return field.NewByteStr(in.Name, b), Flags{}, status.Ok()
	}
	return field.NewByteStr(in.Name, decoded), Flags{Modified: true}, status.Ok()
}

func base64Encode(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	encoded := base64.StdEncoding.EncodeToString(b)
	return field.NewByteStr(in.Name, []byte(encoded)), Flags{Modified: true}, status.Ok()
}

// htmlEntityDecode handles the common named/numeric entities; it is not a
// full HTML5 entity table, matching the scope of an inline inspection
// engine's normalization step rather than a browser-grade parser.
func htmlEntityDecode(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	s := string(b)
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&apos;", "'",
	)
	out := replacer.Replace(s)
	return field.NewByteStr(in.Name, []byte(out)), Flags{Modified: out != s}, status.Ok()
}

func removeWhitespace(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			out = append(out, c)
		}
	}
	return field.NewByteStr(in.Name, out), Flags{Modified: len(out) != len(b)}, status.Ok()
}

func compressWhitespace(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	b, ok := byteStrOnly(in)
	if !ok {
		return in, Flags{}, status.Ok()
	}
	fields := strings.Fields(string(b))
	out := strings.Join(fields, " ")
	return field.NewByteStr(in.Name, []byte(out)), Flags{Modified: out != string(b)}, status.Ok()
}

func none(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status) {
	return in, Flags{}, status.Ok()
}
