package utils

import (
	"RC/configs"
	"sort"
	"strconv"
	"sync"
	"time"

	set "github.com/deckarep/golang-set"
)

// Info the outcome of one driver operation. Times are in microseconds.
type Info struct {
	Index     int    `json:"index"`
	Login     string `json:"login"`
	Strategy  string `json:"strategy"`
	Actual    int64  `json:"actual"`
	Estimated int64  `json:"estimated"`
	LockWait  int64  `json:"lock_wait"`
	Conflict  bool   `json:"conflict"`
	Contended bool   `json:"contended"`
}

// Summary the aggregated view of a run.
type Summary struct {
	Strategy   string        `json:"strategy"`
	Items      int           `json:"items"`
	Actual     int64         `json:"actual_us"`
	Estimated  int64         `json:"estimated_us"`
	Conflicts  int           `json:"conflicts"`
	Contended  int           `json:"contended"`
	P50        time.Duration `json:"p50"`
	P90        time.Duration `json:"p90"`
	P99        time.Duration `json:"p99"`
	WallTime   time.Duration `json:"wall_time"`
	FirstIndex int           `json:"first_index"`
	LastIndex  int           `json:"last_index"`
}

type Stat struct {
	mu        *sync.Mutex
	strategy  string
	infos     []*Info
	seen      set.Set
	actual    int64
	estimated int64
	conflicts int
	contended int
	beginTime time.Time
	endTime   time.Time
}

func NewStat(strategy string) *Stat {
	res := &Stat{
		mu:        &sync.Mutex{},
		strategy:  strategy,
		infos:     make([]*Info, 0),
		seen:      set.NewSet(),
		beginTime: time.Now(),
		endTime:   time.Now(),
	}
	return res
}

// Append records one operation. Indices must arrive strictly increasing and
// never repeat.
func (st *Stat) Append(info *Info) {
	st.mu.Lock()
	defer st.mu.Unlock()
	configs.Assert(st.seen.Add(info.Index), "index "+strconv.Itoa(info.Index)+" processed twice")
	if n := len(st.infos); n > 0 {
		configs.Assert(st.infos[n-1].Index < info.Index, "indices out of order at "+strconv.Itoa(info.Index))
	}
	st.infos = append(st.infos, info)
	st.actual += info.Actual
	st.estimated += info.Estimated
	if info.Conflict {
		st.conflicts++
	}
	if info.Contended {
		st.contended++
	}
	st.endTime = time.Now()
}

func (st *Stat) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.infos)
}

func (st *Stat) Actual() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.actual
}

func (st *Stat) Estimated() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.estimated
}

// Indices returns the processed item indices in processing order.
func (st *Stat) Indices() []int {
	st.mu.Lock()
	defer st.mu.Unlock()
	res := make([]int, len(st.infos))
	for i, v := range st.infos {
		res[i] = v.Index
	}
	return res
}

func (st *Stat) Infos() []*Info {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]*Info(nil), st.infos...)
}

func (st *Stat) Summary() Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	res := Summary{
		Strategy:  st.strategy,
		Items:     len(st.infos),
		Actual:    st.actual,
		Estimated: st.estimated,
		Conflicts: st.conflicts,
		Contended: st.contended,
		WallTime:  st.endTime.Sub(st.beginTime),
		LastIndex: -1,
	}
	if len(st.infos) == 0 {
		return res
	}
	res.FirstIndex = st.infos[0].Index
	res.LastIndex = st.infos[len(st.infos)-1].Index
	latencies := make([]int, len(st.infos))
	for i, v := range st.infos {
		latencies[i] = int(v.Actual)
	}
	sort.Ints(latencies)
	at := func(i int) time.Duration {
		return time.Duration(latencies[Min(i, len(latencies)-1)]) * time.Microsecond
	}
	res.P99 = at(len(latencies) * 99 / 100)
	res.P90 = at(len(latencies) * 9 / 10)
	res.P50 = at(len(latencies) / 2)
	return res
}
