package codename

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
)

// randIndex is a seam for tests; it must return a uniform value in [0, n).
var randIndex = common.RandIndex

// Generator draws codenames from a wordlist.
type Generator struct {
	words       []string
	numWords    int
	maxLen      int
	maxAttempts int
	log         logging.Logger
}

// NewGenerator returns a Generator over words. Zero numWords or maxLen select
// the package defaults.
func NewGenerator(words []string, numWords, maxLen int, log logging.Logger) *Generator {
	if numWords <= 0 {
		numWords = DefaultNumWords
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxCodenameLen
	}
	return &Generator{
		words:       words,
		numWords:    numWords,
		maxLen:      maxLen,
		maxAttempts: DefaultMaxGenerateAttempts,
		log:         log.With("module", "codename"),
	}
}

// MaxLen is the codename length limit the generator enforces.
func (g *Generator) MaxLen() int { return g.maxLen }

// Generate returns a fresh codename. Draws longer than the limit are discarded
// and logged; after a few failed attempts it gives up with
// common.ErrCodenameGeneration.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		c, err := g.draw()
		if err != nil {
			return "", err
		}
		if len(c) <= g.maxLen {
			return c, nil
		}
		g.log.Warn(ctx, "generated a source codename that was too long, skipping it",
			"length", len(c), "max", g.maxLen, "attempt", attempt+1)
	}
	return "", common.ErrCodenameGeneration
}

func (g *Generator) draw() (string, error) {
	parts := make([]string, g.numWords)
	for i := range parts {
		w, err := pick(g.words)
		if err != nil {
			return "", err
		}
		parts[i] = w
	}
	return strings.Join(parts, " "), nil
}

// Designation returns a random "adjective noun" label for the journalist side.
func (g *Generator) Designation() (string, error) {
	a, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	n, err := pick(nouns)
	if err != nil {
		return "", err
	}
	return a + " " + n, nil
}

func pick(list []string) (string, error) {
	i, err := randIndex(len(list))
	if err != nil {
		return "", err
	}
	return list[i], nil
}
