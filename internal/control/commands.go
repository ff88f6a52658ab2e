package control

import (
	"fmt"
	"strings"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/enginemgr"
	"github.com/ironbee-go/engine/internal/status"
)

// Version is the control channel's reported protocol/build version, for
// the supplemental "version" command.
const Version = "1.0.0"

// RegisterBuiltins wires the spec's built-in commands (echo,
// engine_create, engine_status, engine_disable) plus the supplemental
// commands this expansion adds (engine_list, version) onto s, backed by
// mgr.
func RegisterBuiltins(s *Server, mgr *enginemgr.Manager) {
	s.Register("echo", func(a *arena.Arena, args []string) (string, status.Status) {
		return strings.Join(args, " "), status.Ok()
	})

	s.Register("version", func(a *arena.Arena, args []string) (string, status.Status) {
		return Version, status.Ok()
	})

	s.Register("engine_create", func(a *arena.Arena, args []string) (string, status.Status) {
		if len(args) < 1 {
			return "", status.Invalid("engine_create requires a config path argument")
		}
		if st := mgr.EngineCreate(args[0]); !st.OK() {
			return "", st
		}
		return "engine created from " + args[0], status.Ok()
	})

	s.Register("engine_status", func(a *arena.Arena, args []string) (string, status.Status) {
		current := mgr.EngineCurrent()
		if current == nil {
			return "no current engine", status.Ok()
		}
		return fmt.Sprintf("current engine active, %d engines tracked", mgr.Count()), status.Ok()
	})

	s.Register("engine_disable", func(a *arena.Arena, args []string) (string, status.Status) {
		if st := mgr.Disable(); !st.OK() {
			return "", st
		}
		return "current engine disabled", status.Ok()
	})

	s.Register("engine_list", func(a *arena.Arena, args []string) (string, status.Status) {
		return fmt.Sprintf("%d engines tracked", mgr.Count()), status.Ok()
	})
}
