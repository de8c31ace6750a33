package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/okian/tabletriage/pkg/logger"
)

// Recipe scopes.
const (
	ScopeQuarantined = "quarantined"
	ScopeCanary      = "canary"
	ScopeGlobal      = "global"
)

const maxPatternLine = 1 << 20

// Params are free-form recipe parameters.
type Params map[string]any

// Float returns the float parameter name or def.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name].(float64); ok {
		return v
	}
	return def
}

// RecipeRecord is a recipe with its accumulated statistics.
type RecipeRecord struct {
	Op            string  `json:"op"`
	Params        Params  `json:"params,omitempty"`
	WinRate       float64 `json:"win_rate"`
	Trials        int     `json:"trials"`
	AvgGain       float64 `json:"avg_gain"`
	GuardFailures int     `json:"guard_failures"`
	Scope         string  `json:"scope"`
}

// Sketch is the compact signature a pattern is matched by.
type Sketch struct {
	ColCount int      `json:"cols"`
	MinHash  []uint32 `json:"minhash"`
}

// Pattern is a persisted family with its recipe records. Patterns are
// produced by an external update path and read-only here.
type Pattern struct {
	Family  string         `json:"family"`
	Sketch  Sketch         `json:"signature_sketch"`
	Recipes []RecipeRecord `json:"recipes"`
}

// ActiveRecipes drops quarantined records.
func (p Pattern) ActiveRecipes() []RecipeRecord {
	out := make([]RecipeRecord, 0, len(p.Recipes))
	for _, r := range p.Recipes {
		if !strings.EqualFold(r.Scope, ScopeQuarantined) {
			out = append(out, r)
		}
	}
	return out
}

// LoadPatterns reads a JSON-Lines pattern store. A missing file yields no
// patterns; corrupt lines are skipped.
func LoadPatterns(ctx context.Context, path string, log logger.Logger) ([]Pattern, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patterns: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Pattern
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxPatternLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var p Pattern
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			skipped++
			continue
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("patterns: read %s: %w", path, err)
	}
	if skipped > 0 && log != nil {
		log.Warn(ctx, "skipped corrupt pattern lines", logger.String("path", path), logger.Int("skipped", skipped))
	}
	return out, nil
}
