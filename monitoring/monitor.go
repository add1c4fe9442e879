// Package monitoring turns a running simulation into a web server that can be
// inspected and controlled from a browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/motesim/monitoring/web"
	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
	"github.com/sarchlab/motesim/sim/hooking"
	"github.com/sarchlab/motesim/sim/serialization"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine        *sim.Engine
	portNumber    int
	openBrowser   bool
	metrics       http.Handler
	notifications *hooking.PosCountTracer

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		notifications: hooking.NewPosCountTracer(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its page in a browser once the server
// is up.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e *sim.Engine) {
	m.engine = e
	e.AcceptHook(m.notifications)
}

// RegisterMetrics sets the handler served at /metrics.
func (m *Monitor) RegisterMetrics(h http.Handler) {
	m.metrics = h
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/start", m.start).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/step", m.step).Methods(http.MethodPost)
	r.HandleFunc("/api/delay/{ms}", m.setDelay).Methods(http.MethodPut)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/units", m.listUnits)
	r.HandleFunc("/api/unit/{index}", m.unitDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/config", m.downloadConfig)
	r.HandleFunc("/api/notifications", m.listNotifications)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics)
	}

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() error {
	actualPort := ":" + strconv.Itoa(m.portNumber)

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", m.Port())
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitoring server stopped: %v", err)
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return nil
}

// Port returns the port the server listens on, or 0 if it is not started.
func (m *Monitor) Port() int {
	if m.listener == nil {
		return 0
	}

	return m.listener.Addr().(*net.TCPAddr).Port
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type stateRsp struct {
	Title     string `json:"title"`
	State     string `json:"state"`
	Now       int64  `json:"now"`
	DelayTime int64  `json:"delay_time"`
	TickTime  int64  `json:"tick_time"`
	Units     int    `json:"units"`
	UnitTypes int    `json:"unit_types"`
	Medium    string `json:"medium,omitempty"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		Title:     m.engine.Title(),
		State:     m.engine.State().String(),
		Now:       m.engine.SimulationTime(),
		DelayTime: m.engine.DelayTime(),
		TickTime:  m.engine.TickTime(),
		Units:     m.engine.UnitCount(),
		UnitTypes: len(m.engine.UnitTypes()),
	}

	if medium := m.engine.Medium(); medium != nil {
		rsp.Medium = serialization.TypeName(medium)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) start(w http.ResponseWriter, r *http.Request) {
	m.engine.Start()
	m.state(w, r)
}

func (m *Monitor) stop(w http.ResponseWriter, r *http.Request) {
	err := m.engine.Stop(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	m.state(w, r)
}

func (m *Monitor) step(w http.ResponseWriter, r *http.Request) {
	err := m.engine.Step(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	m.state(w, r)
}

func (m *Monitor) setDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.ParseInt(mux.Vars(r)["ms"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.engine.SetDelayTime(ms)
	m.state(w, r)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.engine.SimulationTime())
}

type unitRsp struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
}

func (m *Monitor) listUnits(w http.ResponseWriter, _ *http.Request) {
	units := m.engine.Units()

	rsp := make([]unitRsp, 0, len(units))
	for i, u := range units {
		rsp = append(rsp, unitRsp{Index: i, Type: serialization.TypeName(u)})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) unitDetails(w http.ResponseWriter, r *http.Request) {
	unit := m.findUnitOr404(w, mux.Vars(r)["index"])
	if unit == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(unit)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	UnitIndex int    `json:"unit_index"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit := m.findUnitOr404(w, strconv.Itoa(req.UnitIndex))
	if unit == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(unit)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findUnitOr404(w http.ResponseWriter, index string) sim.Unit {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 {
		http.Error(w, "invalid unit index", http.StatusBadRequest)
		return nil
	}

	units := m.engine.Units()
	if i >= len(units) {
		http.Error(w, "Unit not found", http.StatusNotFound)
		return nil
	}

	return units[i]
}

func (m *Monitor) downloadConfig(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xml"
	}

	codec, err := config.CodecForPath("simulation." + format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	root := config.NewNode(config.RootName, "", m.engine.Config()...)

	buf := new(bytes.Buffer)

	err = codec.Encode(buf, root)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) listNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.notifications.Counts())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			http.Error(w, "invalid profile duration", http.StatusBadRequest)
			return
		}

		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
