package memory

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Arm holds the statistics of one (family, op) pair.
type Arm struct {
	Trials        int     `json:"trials"`
	Wins          int     `json:"wins"`
	AvgGain       float64 `json:"avg_gain"`
	GuardFailures int     `json:"guard_failures"`
}

// WinRate is wins over trials, 0 before the first trial.
func (a Arm) WinRate() float64 {
	if a.Trials == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.Trials)
}

// Bandit is an epsilon-greedy policy over recipe ops per family. Its state
// lives for the lifetime of the process and is never written back.
type Bandit struct {
	mu      sync.Mutex
	epsilon float64
	rng     *rand.Rand
	arms    map[string]map[string]*Arm
}

// NewBandit creates a bandit exploring with probability epsilon.
func NewBandit(epsilon float64, rng *rand.Rand) *Bandit {
	return &Bandit{
		epsilon: epsilon,
		rng:     rng,
		arms:    make(map[string]map[string]*Arm),
	}
}

func (b *Bandit) arm(family, op string) *Arm {
	fam, ok := b.arms[family]
	if !ok {
		fam = make(map[string]*Arm)
		b.arms[family] = fam
	}
	a, ok := fam[op]
	if !ok {
		a = &Arm{}
		fam[op] = a
	}
	return a
}

// Explore draws the exploration coin.
func (b *Bandit) Explore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64() < b.epsilon
}

// Shuffle permutes items in place using the bandit's source.
func (b *Bandit) Shuffle(n int, swap func(i, j int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rng.Shuffle(n, swap)
}

// Choose orders ops for family: shuffled with probability epsilon, else by
// win rate then average gain, descending. Ties keep the given order.
func (b *Bandit) Choose(family string, ops []string) []string {
	out := append([]string(nil), ops...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rng.Float64() < b.epsilon {
		b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	stats := make(map[string]Arm, len(out))
	for _, op := range out {
		stats[op] = *b.arm(family, op)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, c := stats[out[i]], stats[out[j]]
		if a.WinRate() != c.WinRate() {
			return a.WinRate() > c.WinRate()
		}
		return a.AvgGain > c.AvgGain
	})
	return out
}

// Update records one trial. It is a win when the guard held and gain
// reached threshold; the average gain is maintained incrementally.
func (b *Bandit) Update(family, op string, gain float64, guardOK bool, threshold float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.arm(family, op)
	a.Trials++
	if guardOK && gain >= threshold {
		a.Wins++
	}
	if !guardOK {
		a.GuardFailures++
	}
	a.AvgGain += (gain - a.AvgGain) / float64(a.Trials)
}

// Seed primes an untouched arm from a persisted recipe record.
func (b *Bandit) Seed(family string, r RecipeRecord) {
	if r.Trials <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.arm(family, r.Op)
	if a.Trials > 0 {
		return
	}
	a.Trials = r.Trials
	a.Wins = int(math.Round(r.WinRate * float64(r.Trials)))
	a.AvgGain = r.AvgGain
	a.GuardFailures = r.GuardFailures
}

// Snapshot copies the arm table.
func (b *Bandit) Snapshot() map[string]map[string]Arm {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]map[string]Arm, len(b.arms))
	for fam, ops := range b.arms {
		m := make(map[string]Arm, len(ops))
		for op, a := range ops {
			m[op] = *a
		}
		out[fam] = m
	}
	return out
}
