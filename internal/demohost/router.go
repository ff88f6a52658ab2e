package demohost

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/hostapi"
	"github.com/ironbee-go/engine/internal/phase"
	"github.com/ironbee-go/engine/pkg/engine"
)

// NewRouter builds a minimal gin router demonstrating the host contract
// end to end: every request opens a transaction, populates ARGS from the
// query string, drives it through request_header and postprocess, and
// either writes the engine's synthesized error response (if blocked) or
// a plain "inspected ok" body. A WebSocket route tails fired events live.
func NewRouter(eng *engine.Engine, host *Host) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	eng.AddEventObserver(host.Hub().Publish)
	r.GET("/_tail", func(c *gin.Context) {
		_ = host.Hub().ServeWS(c.Writer, c.Request)
	})

	r.NoRoute(func(c *gin.Context) {
		handleInspected(c, eng, host)
	})
	return r
}

func handleInspected(c *gin.Context, eng *engine.Engine, host *Host) {
	txID := eng.NewTransactionID()

	if st := eng.Dispatch(phase.StateTxStarted, txID, false); !st.OK() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer eng.Dispatch(phase.StateTxDestroyed, txID, false)

	tx := eng.Transaction(txID)
	if tx == nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	var argFields []*field.Field
	for key, values := range c.Request.URL.Query() {
		for _, v := range values {
			argFields = append(argFields, field.NewByteStr(key, []byte(v)))
		}
	}
	tx.Store().Set("ARGS", field.NewList("ARGS", argFields))
	tx.Store().Set("REQUEST_URI", field.NewByteStr("REQUEST_URI", []byte(c.Request.URL.String())))
	tx.Store().Set("REQUEST_METHOD", field.NewByteStr("REQUEST_METHOD", []byte(c.Request.Method)))

	st := eng.Dispatch(phase.StateRequestHeader, txID, false)
	if st.Declined() {
		// eng.Dispatch already drove host.ErrorResponse/ErrorBody exactly
		// once for this transaction (spec §7); this host only adds its
		// own marker header on top of that.
		host.ErrorHeader(txID, "X-Blocked-By", "ironbee-go")

		code, headers, body := host.SynthesizedError(txID)
		for k, v := range headers {
			c.Header(k, v)
		}
		host.Commit(txID, hostapi.Response)
		c.Data(code, "text/plain; charset=utf-8", body)
		return
	}

	eng.Dispatch(phase.StatePostProcess, txID, false)

	for k, v := range host.HeadersFor(txID, hostapi.Response) {
		c.Header(k, v)
	}
	host.Commit(txID, hostapi.Response)
	c.String(http.StatusOK, "inspected ok")
}
