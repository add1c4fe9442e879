package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/motesim/builtin"
	"github.com/sarchlab/motesim/sim"
)

var _ = Describe("Monitor", func() {
	var (
		e      *sim.Engine
		m      *Monitor
		router *mux.Router
		mote   *builtin.CounterMote
	)

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		return rec
	}

	decodeState := func(rec *httptest.ResponseRecorder) stateRsp {
		rsp := stateRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		return rsp
	}

	BeforeEach(func() {
		e = sim.MakeEngineBuilder().
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			WithTitle("monitored").
			WithDelayTime(0).
			Build()

		moteType := builtin.NewCounterMoteType("sky", "")
		e.AddUnitType(context.Background(), moteType)
		mote = builtin.NewCounterMote(moteType)
		e.AddUnit(context.Background(), mote)
		e.SetMedium(context.Background(), builtin.NewRangeMedium())

		m = NewMonitor()
		m.RegisterEngine(e)
		router = m.Router()
	})

	It("should reject low port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should step the simulation", func() {
		rec := do(http.MethodPost, "/api/step")

		Expect(rec.Code).To(Equal(http.StatusOK))
		state := decodeState(rec)
		Expect(state.Now).To(Equal(int64(1)))
		Expect(state.State).To(Equal("stopped"))
		Expect(state.Title).To(Equal("monitored"))
		Expect(mote.Count()).To(Equal(int64(1)))
	})

	It("should start and stop the simulation", func() {
		rec := do(http.MethodPost, "/api/start")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(e.Running()).To(BeTrue())

		rec = do(http.MethodPost, "/api/stop")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeState(rec).State).To(Equal("stopped"))
	})

	It("should only accept control requests as POST", func() {
		rec := do(http.MethodGet, "/api/start")

		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(e.Running()).To(BeFalse())
	})

	It("should change the delay", func() {
		rec := do(http.MethodPut, "/api/delay/25")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(e.DelayTime()).To(Equal(int64(25)))

		rec = do(http.MethodPut, "/api/delay/soon")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report the time", func() {
		e.SetSimulationTime(1234)

		rec := do(http.MethodGet, "/api/now")

		Expect(rec.Body.String()).To(Equal(`{"now":1234}`))
	})

	It("should list units", func() {
		rec := do(http.MethodGet, "/api/units")

		rsp := []unitRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal([]unitRsp{{
			Index: 0,
			Type:  "github.com/sarchlab/motesim/builtin.CounterMote",
		}}))
	})

	It("should describe a unit", func() {
		rec := do(http.MethodGet, "/api/unit/0")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should return 404 for unknown units", func() {
		Expect(do(http.MethodGet, "/api/unit/3").Code).
			To(Equal(http.StatusNotFound))
		Expect(do(http.MethodGet, "/api/unit/x").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should list a field of a unit", func() {
		req := url.PathEscape(`{"unit_index":0,"field_name":"Offset"}`)

		rec := do(http.MethodGet, "/api/field/"+req)
		Expect(rec.Code).NotTo(Equal(http.StatusNotFound))

		req = url.PathEscape(`{"unit_index":5,"field_name":"Offset"}`)
		rec = do(http.MethodGet, "/api/field/"+req)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should download the configuration", func() {
		rec := do(http.MethodGet, "/api/config")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("<simulation>"))
		Expect(rec.Body.String()).To(ContainSubstring("<title>monitored</title>"))

		rec = do(http.MethodGet, "/api/config?format=yaml")
		Expect(rec.Body.String()).To(ContainSubstring("name: simulation"))

		rec = do(http.MethodGet, "/api/config?format=ini")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should count notifications", func() {
		do(http.MethodPost, "/api/step")

		rec := do(http.MethodGet, "/api/notifications")

		counts := map[string]uint64{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &counts)).To(Succeed())
		Expect(counts).To(HaveKeyWithValue(
			sim.HookPosSimulationStarted.Name, uint64(1)))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("run", 10)
		bar.SetFinished(4)

		rec := do(http.MethodGet, "/api/progress")

		bars := []progressBarRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Finished).To(Equal(uint64(4)))

		m.CompleteProgressBar(bar)

		rec = do(http.MethodGet, "/api/progress")
		Expect(rec.Body.String()).To(Equal("[]"))
	})

	It("should report resources", func() {
		rec := do(http.MethodGet, "/api/resource")

		rsp := resourceRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve metrics when registered", func() {
		Expect(do(http.MethodGet, "/metrics").Code).
			NotTo(Equal(http.StatusTeapot))

		m.RegisterMetrics(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))
		router = m.Router()

		Expect(do(http.MethodGet, "/metrics").Code).
			To(Equal(http.StatusTeapot))
	})

	It("should serve the web page", func() {
		rec := do(http.MethodGet, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should start and stop the server", func() {
		Expect(m.StartServer()).To(Succeed())
		Expect(m.Port()).To(BeNumerically(">", 0))

		Expect(m.StopServer(context.Background())).To(Succeed())
	})
})
