package producer

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// Metadata keys of synthetic records. Each record also carries one to four
// random word keys with word values.
const (
	IntValKey   = "int_val"
	FloatValKey = "float_val"
)

// Shape of the int_val and float_val distributions.
const (
	valueMean  = 500.0
	valueStd   = 100.0
	valueLimit = 1000.0
)

var syntheticWords = strings.Fields(`amber anchor apple arrow aspen basil beacon birch
bramble breeze canyon cedar cinder clover comet copper coral cricket dawn delta
drift dune ember falcon fern flint fjord garnet glacier granite harbor hazel heron
indigo iris ivory jasper juniper kelp kestrel lagoon lantern larch lichen linen
maple marble meadow mica moss nectar nettle oak ocean onyx orchid otter pebble
pine plume prairie quartz quill raven reed ridge river saffron sage shale sparrow
spruce stone summit thistle thorn tide timber topaz tundra umber valley velvet
willow wren yarrow zephyr`)

var syntheticSentences = []string{
	"The ferry left the harbor an hour before the fog rolled in.",
	"Someone had stacked the library chairs into a careful spiral.",
	"A kettle whistled in the next room and nobody moved.",
	"The survey team marked every third pine with orange paint.",
	"Night trains carry more letters than passengers these days.",
	"She kept the receipts in a biscuit tin under the stairs.",
	"The orchard flooded twice before the new levee was finished.",
	"Every lighthouse on the coast was automated by spring.",
	"He repaired the radio with wire taken from a broken lamp.",
	"The market opens early when the catch is good.",
	"Snow closed the pass for eleven days in a row.",
	"The printer jammed on the last page of the report.",
	"A heron waited at the edge of the reservoir all morning.",
	"They measured the glacier against a photograph from 1950.",
	"The bakery on the corner sells out of rye by noon.",
	"Copper roofs turn green faster near the sea.",
	"The committee postponed the vote until the auditors returned.",
	"Wind turbines on the ridge stood still for the whole week.",
	"The museum moved the meteorite to a quieter gallery.",
	"Her notes filled the margins of every borrowed book.",
	"A delivery drone circled the courtyard and gave up.",
	"The bridge inspection found rust under the third span.",
	"Marsh birds returned a month later than usual.",
	"The choir rehearsed in the parking garage for the echo.",
	"Old maps of the valley show a village that never existed.",
}

// SyntheticConfig controls generated test data.
type SyntheticConfig struct {
	// Count is the number of records to generate.
	Count int
	// Seed makes the output reproducible.
	Seed uint64
	// DocsFile, when set, supplies document texts one per line; they are
	// cycled when Count exceeds the number of lines.
	DocsFile string
	// Embedding is attached to every record. Defaults to [0.1, 0.2].
	Embedding []float32
}

// Synthetic generates records with normally distributed numeric metadata
// for filter and throughput testing. After Produce, Queries describes
// filters with known result counts over the generated records.
type Synthetic struct {
	cfg    SyntheticConfig
	docs   []string
	logger *slog.Logger

	ints   []int64
	floats []float64
	words  []map[string]string
	firsts [][2]string
}

var _ pipeline.Producer = (*Synthetic)(nil)

// NewSynthetic validates cfg and loads DocsFile.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", cfg.Count)
	}
	if cfg.Embedding == nil {
		cfg.Embedding = []float32{0.1, 0.2}
	}
	s := &Synthetic{
		cfg:    cfg,
		docs:   syntheticSentences,
		logger: slog.Default().With("component", "synthetic"),
	}
	if cfg.DocsFile != "" {
		docs, err := readLines(cfg.DocsFile)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("%s has no documents", cfg.DocsFile)
		}
		s.docs = docs
	}
	return s, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func (s *Synthetic) rng() *rand.Rand {
	return rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))
}

// rngReader feeds uuid generation from the seeded source.
type rngReader struct{ r *rand.Rand }

func (rr rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(rr.r.Uint32())
	}
	return len(p), nil
}

// normal draws within three standard deviations of the mean, clipped to
// [0, valueLimit].
func normal(r *rand.Rand) float64 {
	for {
		v := r.NormFloat64()*valueStd + valueMean
		if math.Abs(v-valueMean) <= 3*valueStd {
			return min(max(v, 0), valueLimit)
		}
	}
}

func (s *Synthetic) Produce(ctx context.Context, emit func(*core.Record) error) error {
	r := s.rng()
	ids := rngReader{r: r}
	s.ints, s.floats, s.words, s.firsts = s.ints[:0], s.floats[:0], s.words[:0], s.firsts[:0]

	for i := range s.cfg.Count {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := uuid.NewRandomFromReader(ids)
		if err != nil {
			return err
		}

		meta := core.Metadata{}
		words := map[string]string{}
		var first [2]string
		for j := range 1 + r.IntN(4) {
			k := syntheticWords[r.IntN(len(syntheticWords))]
			v := syntheticWords[r.IntN(len(syntheticWords))]
			if _, dup := words[k]; dup {
				continue
			}
			meta[k], words[k] = v, v
			if j == 0 {
				first = [2]string{k, v}
			}
		}
		iv := int64(normal(r))
		fv := normal(r)
		meta[IntValKey] = iv
		meta[FloatValKey] = fv
		s.ints = append(s.ints, iv)
		s.floats = append(s.floats, fv)
		s.words = append(s.words, words)
		s.firsts = append(s.firsts, first)

		var doc string
		if s.cfg.DocsFile != "" {
			doc = s.docs[i%len(s.docs)]
		} else {
			doc = s.docs[r.IntN(len(s.docs))]
		}
		rec := &core.Record{
			ID:        core.StringPtr(id.String()),
			TextChunk: core.StringPtr(doc),
			Metadata:  meta,
			Embedding: slices.Clone(s.cfg.Embedding),
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	s.logger.Debug("synthetic records generated", "count", s.cfg.Count, "seed", s.cfg.Seed)
	return nil
}
