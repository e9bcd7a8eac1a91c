package signals

import (
	"sync"
	"time"
)

// HistoryCapacity is the number of observations kept per symbol.
const HistoryCapacity = 10

type fieldSet uint8

const (
	hasOI fieldSet = 1 << iota
	hasVolumeRatio
	hasDominance
)

// Observation is what one analyze pass remembers about a symbol. Fields that were
// never written read as absent, and callers substitute the current value.
type Observation struct {
	openInterestUSD float64
	volumeRatio     float64
	btcDominance    float64
	set             fieldSet
	ObservedAt      time.Time
}

func (o Observation) OpenInterestUSD() (float64, bool) {
	return o.openInterestUSD, o.set&hasOI != 0
}

func (o Observation) VolumeRatio() (float64, bool) {
	return o.volumeRatio, o.set&hasVolumeRatio != 0
}

func (o Observation) BTCDominance() (float64, bool) {
	return o.btcDominance, o.set&hasDominance != 0
}

func (o *Observation) SetOpenInterestUSD(v float64) {
	o.openInterestUSD = v
	o.set |= hasOI
}

func (o *Observation) SetVolumeRatio(v float64) {
	o.volumeRatio = v
	o.set |= hasVolumeRatio
}

func (o *Observation) SetBTCDominance(v float64) {
	o.btcDominance = v
	o.set |= hasDominance
}

// ring is a fixed-capacity buffer that evicts the oldest entry when full.
type ring struct {
	buf   [HistoryCapacity]Observation
	start int
	size  int
}

func (r *ring) push(o Observation) {
	if r.size < HistoryCapacity {
		r.buf[(r.start+r.size)%HistoryCapacity] = o
		r.size++
		return
	}
	r.buf[r.start] = o
	r.start = (r.start + 1) % HistoryCapacity
}

func (r *ring) lastIndex() int {
	return (r.start + r.size - 1) % HistoryCapacity
}

// tail returns up to n most recent observations, oldest first.
func (r *ring) tail(n int) []Observation {
	if n > r.size {
		n = r.size
	}
	out := make([]Observation, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%HistoryCapacity])
	}
	return out
}

// History holds per-symbol rolling observations. Each method is atomic.
type History struct {
	mu      sync.Mutex
	symbols map[string]*ring
}

func NewHistory() *History {
	return &History{symbols: make(map[string]*ring)}
}

// Last returns the most recent observation for symbol.
func (h *History) Last(symbol string) (Observation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.symbols[symbol]
	if !ok || r.size == 0 {
		return Observation{}, false
	}
	return r.buf[r.lastIndex()], true
}

// Tail returns up to n most recent observations for symbol, oldest first.
func (h *History) Tail(symbol string, n int) []Observation {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.symbols[symbol]
	if !ok {
		return nil
	}
	return r.tail(n)
}

// Append adds o as the newest observation for symbol.
func (h *History) Append(symbol string, o Observation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.symbols[symbol]
	if !ok {
		r = &ring{}
		h.symbols[symbol] = r
	}
	r.push(o)
}

func (h *History) Len(symbol string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.symbols[symbol]; ok {
		return r.size
	}
	return 0
}
