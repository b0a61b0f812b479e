package fuzzing

import (
	"context"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/pkg/migrations"
	testutil "fedgrants-backend/test/util"
	"fmt"
	"math/rand"
	"sort"
)

// steps:
// - Merge(awardIds, window)
//   - every award id is either:
//     - an id already in the cache (60%)
//     - an id from a small fixed pool (40%)
//   - window is in [1, 5]
// - Evict(window)
//   - evicts relative to the newest generation, window is in [0, 5]
//
// properties of the system:
// - a merge is stamped with one past the newest generation, or 0 on an empty cache
// - every award of a merge ends up in the merged generation
// - after an eviction no award older than the cutoff remains and no newer award is lost
// - the generations listed by the cache always match the awards merged into it

type cacheTarget struct {
	tel   telemetry.API
	rndm  *rand.Rand
	cache gencache.Cache

	// model maps every award id expected in the cache to its generation
	model    map[string]int64
	diverged bool
	idAction func(*rand.Rand) int
}

type CacheProvider struct{}

func (CacheProvider) CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error) {
	database, err := migrations.OpenAndMigrateDB(db.CacheSchema, ":memory:")
	if err != nil {
		return nil, err
	}
	return &cacheTarget{
		tel:   tel,
		rndm:  rndm,
		cache: gencache.NewCache(database, telemetry.NoopAPI{}),
		model: map[string]int64{},
		// 0: id already cached
		// 1: id from the pool
		idAction: testutil.RandomSwitch(3, 2),
	}, nil
}

func (t *cacheTarget) nextGeneration() int64 {
	if len(t.model) == 0 {
		return 0
	}
	var latest int64
	for _, gen := range t.model {
		latest = max(latest, gen)
	}
	return latest + 1
}

func (t *cacheTarget) evictModel(cutoff int64) {
	for id, gen := range t.model {
		if gen < cutoff {
			delete(t.model, id)
		}
	}
}

func (t *cacheTarget) randomAwardID() string {
	if t.idAction(t.rndm) == 0 && len(t.model) > 0 {
		ids := make([]string, 0, len(t.model))
		for id := range t.model {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids[t.rndm.Intn(len(ids))]
	}
	return fmt.Sprintf("F%02d", t.rndm.Intn(24))
}

func (t *cacheTarget) staged(ids []string) gencache.StagedSet {
	var set gencache.StagedSet
	for _, id := range ids {
		set.Awards = append(set.Awards, db.Award{
			AwardID: id,
			Agency:  "NSF",
			Title:   testutil.RandomString(t.rndm, 12),
			Amount:  t.rndm.Int63n(5_000_000),
		})
		set.Keywords = append(set.Keywords, db.KeywordIndex{
			AwardID: id,
			Keyword: testutil.RandomString(t.rndm, 6),
		})
	}
	return set
}

func (t *cacheTarget) StepMerge(ctx context.Context, res *Results) error {
	seen := map[string]bool{}
	var ids []string
	for range 1 + t.rndm.Intn(6) {
		id := t.randomAwardID()
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	window := int64(1 + t.rndm.Intn(5))

	t.tel.ReportDebug("+ merge", "awards", ids, "window", window)

	expected := t.nextGeneration()
	result, err := t.cache.Merge(ctx, t.staged(ids), window)
	if err != nil {
		return nil
	}
	if result.Generation != expected {
		res.Fail(fmt.Errorf(
			"merge.generation: merge was stamped with generation %d, expected %d",
			result.Generation, expected,
		))
	}
	for _, id := range ids {
		t.model[id] = result.Generation
	}
	if result.EvictErr == nil {
		t.evictModel(result.Generation - window)
	}
	return t.checkGenerations(ctx, res, "merge")
}

func (t *cacheTarget) StepEvict(ctx context.Context, res *Results) error {
	window := int64(t.rndm.Intn(6))
	gen := t.nextGeneration() - 1

	t.tel.ReportDebug("- evict", "generation", gen, "window", window)

	_, err := t.cache.EvictOlderThan(ctx, gen, window)
	if err != nil {
		return nil
	}
	t.evictModel(gen - window)
	return t.checkGenerations(ctx, res, "evict")
}

func (t *cacheTarget) checkGenerations(ctx context.Context, res *Results, step string) error {
	if t.diverged {
		return nil
	}
	gens, err := t.cache.Generations(ctx)
	if err != nil {
		return err
	}
	got := map[int64]int64{}
	for _, g := range gens {
		got[g.Counter] = g.Awards
	}
	expected := map[int64]int64{}
	for _, gen := range t.model {
		expected[gen]++
	}
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		res.Fail(fmt.Errorf(
			"%s.generations: cached generations %v do not match the merged awards %v",
			step, got, expected,
		))
		t.diverged = true
	}
	return nil
}

func (t *cacheTarget) OnEnd(ctx context.Context, res *Results) {
	defer t.cache.DB().Close()
	next, err := t.cache.NextGeneration(ctx)
	if err != nil {
		return
	}
	if !t.diverged && next != t.nextGeneration() {
		res.Fail(fmt.Errorf(
			"end.next-generation: cache would stamp generation %d, expected %d",
			next, t.nextGeneration(),
		))
	}
}
