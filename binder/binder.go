package binder

import (
	"sort"
	"sync"

	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/guest"
)

// Binder owns the overload sets of one guest runtime. The sorted
// candidate list of each set is the only state kept between calls.
type Binder struct {
	conv         *convert.Converter
	sets         map[string]*Overloads
	mu           sync.RWMutex
	allowThreads bool
}

// Option configures a Binder.
type Option func(*Binder)

// WithoutAllowThreads keeps the guest lock held during every host call.
func WithoutAllowThreads() Option {
	return func(b *Binder) { b.allowThreads = false }
}

func New(conv *convert.Converter, opts ...Option) *Binder {
	b := &Binder{
		conv:         conv,
		sets:         make(map[string]*Overloads),
		allowThreads: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binder) Converter() *convert.Converter { return b.conv }

func (b *Binder) guest() guest.API { return b.conv.Guest() }

// Define adds candidates to the overload set called name, creating it if
// needed.
func (b *Binder) Define(name string, cands ...*Candidate) *Overloads {
	b.mu.Lock()
	o, ok := b.sets[name]
	if !ok {
		o = &Overloads{b: b, name: name}
		b.sets[name] = o
	}
	b.mu.Unlock()
	o.Add(cands...)
	return o
}

// Lookup returns the overload set called name.
func (b *Binder) Lookup(name string) (*Overloads, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.sets[name]
	return o, ok
}

// Names returns the names of all overload sets in sorted order.
func (b *Binder) Names() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.sets))
	for name := range b.sets {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Overloads is the candidate set of one method name.
type Overloads struct {
	b      *Binder
	name   string
	cands  []*Candidate
	sorted []*Candidate
	mu     sync.Mutex
	ready  bool
}

func (o *Overloads) Name() string { return o.name }

// Add appends candidates and drops the sorted cache.
func (o *Overloads) Add(cands ...*Candidate) {
	o.mu.Lock()
	o.cands = append(o.cands, cands...)
	o.ready = false
	o.sorted = nil
	o.mu.Unlock()
}

// Candidates returns the candidates in resolution order.
func (o *Overloads) Candidates() []*Candidate {
	return append([]*Candidate(nil), o.ordered()...)
}

// ordered returns the cached resolution order, building it on first use.
func (o *Overloads) ordered() []*Candidate {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		o.sorted = sortCandidates(append([]*Candidate(nil), o.cands...))
		o.ready = true
	}
	return o.sorted
}

// sortCandidates sorts by ascending score, then by descending derivation,
// keeping declaration order among equals.
func sortCandidates(cands []*Candidate) []*Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score < cands[j].score
		}
		return cands[i].sig.Derivation > cands[j].sig.Derivation
	})
	return cands
}
