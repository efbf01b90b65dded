package command

import (
	"context"
	"math/rand/v2"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// RandomCommand returns a random sample of records matching a query.
//
// Backends implementing search.RandomSampler answer natively. Otherwise the
// sample is built from Search calls:
//   - a count-only search reads the total; zero matches returns that empty
//     collection as-is
//   - fewer matches than limit fetches them all and shuffles them
//   - otherwise limit distinct offsets are drawn uniformly, redrawing on
//     collisions, and each is fetched with a single-record search in draw order
type RandomCommand struct {
	base
	query search.Query
	limit int
	rng   *rand.Rand
}

// NewRandomCommand creates a random sample of up to limit records. Use
// WithRand to make the fallback sampling reproducible.
func NewRandomCommand(backendID string, q search.Query, limit int, params *search.ParamBag, opts ...Option) *RandomCommand {
	b, o := newBase(OpRandom, backendID, params, opts)
	return &RandomCommand{base: b, query: q, limit: limit, rng: o.rng}
}

// Limit returns the requested sample size.
func (c *RandomCommand) Limit() int { return c.limit }

func (c *RandomCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}

	if sampler, ok := backend.(search.RandomSampler); ok {
		return c.run(backend, PathOptimized, func() (any, error) {
			return sampler.Random(ctx, c.query, c.limit, c.params)
		})
	}

	response, err := c.sample(ctx, backend)
	if err != nil {
		return err
	}
	c.finalize(response, PathFallback, nil)
	return nil
}

func (c *RandomCommand) sample(ctx context.Context, backend search.Backend) (*search.RecordCollection, error) {
	probe, err := backend.Search(ctx, c.query, 0, 0, c.params)
	if err != nil {
		return nil, err
	}

	total := probe.Total()
	switch {
	case total == 0 || c.limit <= 0:
		return probe, nil

	case total < c.limit:
		all, err := backend.Search(ctx, c.query, 0, c.limit, c.params)
		if err != nil {
			return nil, err
		}
		all.Shuffle(c.rng)
		return all, nil
	}

	var response *search.RecordCollection
	drawn := make(map[int]struct{}, c.limit)
	for len(drawn) < c.limit {
		i := c.intN(total)
		if _, seen := drawn[i]; seen {
			continue
		}
		drawn[i] = struct{}{}

		batch, err := backend.Search(ctx, c.query, i, 1, c.params)
		if err != nil {
			return nil, err
		}
		if response == nil {
			response = batch
			continue
		}
		if record := batch.First(); record != nil {
			response.Add(record)
		}
	}
	return response, nil
}

func (c *RandomCommand) intN(n int) int {
	if c.rng == nil {
		return rand.IntN(n)
	}
	return c.rng.IntN(n)
}

// Records returns the sampled records.
func (c *RandomCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}
