package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

func registerBuiltins(r *Registry) {
	r.Register(&Definition{Name: "block", Create: createBlockParam, Execute: executeBlock})
	r.Register(&Definition{Name: "setvar", Create: createSetvarParam, Execute: executeSetvar})
	r.Register(&Definition{Name: "event", Create: createLiteralParam, Execute: executeEvent})
	r.Register(&Definition{Name: "capture", Create: createLiteralParam, Execute: executeCapture})
	r.Register(&Definition{Name: "severity", Create: createIntParam, Execute: executeSeverity})
	r.Register(&Definition{Name: "confidence", Create: createIntParam, Execute: executeConfidence})
	r.Register(&Definition{Name: "tag", Create: createLiteralParam, Execute: executeTag})
	r.Register(&Definition{Name: "msg", Create: createLiteralParam, Execute: executeMsg})
}

func createLiteralParam(a *arena.Arena, param string) (any, status.Status) {
	return param, status.Ok()
}

type blockParam struct {
	kind       BlockKind
	statusCode int
}

// createBlockParam parses "advisory|phase|immediate" optionally suffixed
// with ":<status code>" (e.g. "immediate:403"), defaulting to 403 per
// spec §7 "default 403".
func createBlockParam(a *arena.Arena, param string) (any, status.Status) {
	parts := strings.SplitN(strings.TrimSpace(param), ":", 2)
	code := 403
	if len(parts) == 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, status.BadValue(fmt.Sprintf("block: invalid status code %q", parts[1]))
		}
		code = n
	}
	var kind BlockKind
	switch strings.ToLower(parts[0]) {
	case "advisory":
		kind = BlockAdvisory
	case "phase":
		kind = BlockPhase
	case "immediate":
		kind = BlockImmediate
	default:
		return nil, status.BadValue(fmt.Sprintf("block: unknown kind %q", parts[0]))
	}
	return blockParam{kind: kind, statusCode: code}, status.Ok()
}

// executeBlock is the one action whose Declined return is the spec's
// exclusive blocking signal (§4.4); the kind/status code were parsed by
// createBlockParam at registration, and executeBlock records them on the
// transaction via SetBlock for the rule engine to read.
func executeBlock(tx TxContext, data any) status.Status {
	p, _ := data.(blockParam)
	tx.SetBlock(p.kind, p.statusCode)
	return status.Declined(fmt.Sprintf("block:%s", p.kind))
}

// createSetvarParam parses "name=value".
func createSetvarParam(a *arena.Arena, param string) (any, status.Status) {
	parts := strings.SplitN(param, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return nil, status.BadValue(fmt.Sprintf("setvar: malformed parameter %q", param))
	}
	return [2]string{strings.TrimSpace(parts[0]), parts[1]}, status.Ok()
}

func executeSetvar(tx TxContext, data any) status.Status {
	nv, _ := data.([2]string)
	expanded, st := tx.Store().Expand(nv[1], 0)
	if !st.OK() && st.Code != status.CodeTrunc {
		return st
	}
	tx.Store().Set(nv[0], field.NewByteStr(nv[0], expanded))
	return status.Ok()
}

// executeEvent emits a structured audit event carrying the firing rule's
// id — the concrete sink (log line, audit DB row) is chosen by whatever
// TxContext implementation the engine wires in. The sink is called
// synchronously, so any I/O it performs runs before the action returns;
// no queue sits between the action and the sink.
func executeEvent(tx TxContext, data any) status.Status {
	msg, _ := data.(string)
	fields := map[string]string{}
	if msg != "" {
		fields["message"] = msg
	}
	tx.EmitEvent(tx.RuleID(), fields)
	return status.Ok()
}

func executeCapture(tx TxContext, data any) status.Status {
	prefix, _ := data.(string)
	tx.SetCapturePrefix(prefix)
	return status.Ok()
}

func createIntParam(a *arena.Arena, param string) (any, status.Status) {
	n, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		return nil, status.BadValue(fmt.Sprintf("not an integer: %q", param))
	}
	return n, status.Ok()
}

func executeSeverity(tx TxContext, data any) status.Status {
	n, _ := data.(int)
	tx.SetSeverity(n)
	return status.Ok()
}

func executeConfidence(tx TxContext, data any) status.Status {
	n, _ := data.(int)
	tx.SetConfidence(n)
	return status.Ok()
}

func executeTag(tx TxContext, data any) status.Status {
	s, _ := data.(string)
	tx.AddTag(s)
	return status.Ok()
}

func executeMsg(tx TxContext, data any) status.Status {
	s, _ := data.(string)
	tx.SetMessage(s)
	return status.Ok()
}
