package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

const (
	RoomsCreated       = "RoomsCreated"
	SyncReads          = "SyncReads"
	SyncWrites         = "SyncWrites"
	Joins              = "Joins"
	JoinsRejected      = "JoinsRejected"
	Heartbeats         = "Heartbeats"
	Leaves             = "Leaves"
	Kicks              = "Kicks"
	ParticipantsPruned = "ParticipantsPruned"
	TitleLookupsFailed = "TitleLookupsFailed"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	name  string
	value int
}

// NewStatsUpdater creates an updater with every server counter registered.
// Call Run before the first Incr.
func NewStatsUpdater() *StatsUpdater {
	su := &StatsUpdater{
		vars:       new(expvar.Map).Init(),
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	for _, name := range []string{
		RoomsCreated, SyncReads, SyncWrites, Joins, JoinsRejected,
		Heartbeats, Leaves, Kicks, ParticipantsPruned, TitleLookupsFailed,
	} {
		su.RegisterMetric(name)
	}
}

// Handler serves the counters as a flat JSON object.
func (su *StatsUpdater) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		expvarData := make(map[string]any)
		su.vars.Do(func(kv expvar.KeyValue) {
			var value any
			json.Unmarshal([]byte(kv.Value.String()), &value)
			expvarData[kv.Key] = value
		})

		json.NewEncoder(w).Encode(expvarData)
	})
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		metric, ok := su.vars.Get(req.name).(*expvar.Int)
		if !ok {
			continue
		}

		metric.Add(int64(req.value))
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
