package demohost

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ironbee-go/engine/internal/config"
	"github.com/ironbee-go/engine/internal/rule"
	"github.com/ironbee-go/engine/internal/ruleengine"
	"github.com/ironbee-go/engine/internal/status"
	"github.com/ironbee-go/engine/pkg/engine"
)

func blockingLoader(e *ruleengine.Engine, configPath string) status.Status {
	return e.RegisterRule(&rule.Rule{
		ID:    "block-rule",
		Phase: rule.PhaseRequestHeader,
		Flags: rule.FlagValid | rule.FlagEnabled,
		Operator: rule.OperatorInstance{
			Operator: "streq",
			Param:    "blockme",
		},
		Targets:     []rule.Target{{Name: "ARGS"}},
		TrueActions: []rule.ActionInstance{{Action: "block", Param: "immediate:403"}},
	})
}

func newTestRouter(t *testing.T) (*engine.Engine, *Host, http.Handler) {
	t.Helper()
	host := NewHost()
	eng := engine.New(&config.Config{MaxEngines: 2}, host, blockingLoader, nil)
	t.Cleanup(eng.Close)
	if st := eng.Manager().EngineCreate("demo.conf"); !st.OK() {
		t.Fatalf("engine_create failed: %v", st)
	}
	return eng, host, NewRouter(eng, host)
}

func TestCleanRequestPassesThrough(t *testing.T) {
	_, _, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/anything?q=hello", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMatchingRequestIsBlocked(t *testing.T) {
	_, _, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/anything?q=blockme", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}
