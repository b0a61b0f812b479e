package fuzzing

import (
	"context"
	"errors"
	"fedgrants-backend/internal/telemetry"
	"fmt"
	"math/rand"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Target holds the state of the system under test and exposes every possible
// mutation of that state as a "step", a method with the signature:
//
// `Step*(ctx context.Context, res *Results) error`
//
// The fuzzer deterministically picks steps from a seed and checks the invariants
// the steps assert. A violated invariant is reported with res.Fail, an error
// returned by a step aborts the path: it is meant for setup errors, not for
// dependency errors which are expected under fault injection.
//
// If a method matching the signature:
//
// `OnEnd(ctx context.Context, res *Results)`
//
// is present, it is called at the end of the path.
type Target interface{}

// TargetProvider creates a fresh target for every path.
type TargetProvider interface {
	CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error)
}

var (
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	resultsType = reflect.TypeOf(&Results{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func targetMethods(target Target) (steps []reflect.Method, onEnd *reflect.Method) {
	t := reflect.TypeOf(target)
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		mt := method.Type
		if mt.NumIn() != 3 || mt.In(1) != ctxType || mt.In(2) != resultsType {
			continue
		}
		if method.Name == "OnEnd" && mt.NumOut() == 0 {
			onEnd = &method
			continue
		}
		if !strings.HasPrefix(method.Name, "Step") || mt.NumOut() != 1 || mt.Out(0) != errorType {
			continue
		}
		steps = append(steps, method)
	}
	return steps, onEnd
}

// Results collects the invariant violations of a path.
type Results struct {
	failures []error
}

func (r *Results) Fail(err error) {
	r.failures = append(r.failures, err)
}

func (r *Results) Failures() []error {
	return r.failures
}

func (r *Results) String() string {
	var out strings.Builder
	out.WriteString("====== CHECKS FAILED ======\n\n")
	for _, err := range r.failures {
		fmt.Fprintf(&out, "\t- %v\n", err)
	}
	return out.String()
}

// Path is a seed and a number of steps, it replays one run of a target.
type Path struct {
	Seed  int64
	Steps int
}

func (p Path) String() string {
	return fmt.Sprintf("%d:%d", p.Seed, p.Steps)
}

// ParsePath reads a path formatted as "seed:steps".
func ParsePath(text string) (Path, error) {
	seed, steps, ok := strings.Cut(text, ":")
	if !ok {
		return Path{}, fmt.Errorf("parse path '%s': missing ':' separator", text)
	}
	s, err := strconv.ParseInt(seed, 10, 64)
	if err != nil {
		return Path{}, fmt.Errorf("parse path '%s': %w", text, err)
	}
	n, err := strconv.Atoi(steps)
	if err != nil {
		return Path{}, fmt.Errorf("parse path '%s': %w", text, err)
	}
	return Path{Seed: s, Steps: n}, nil
}

// Failure is a path that violated at least one invariant.
type Failure struct {
	Path    Path
	Results *Results
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s\npath: %s", f.Results, f.Path)
}

// F is a fuzzing job on a given target provider.
type F struct {
	tel      telemetry.API
	provider TargetProvider
	steps    []reflect.Method
	onEnd    *reflect.Method
	minSteps int
	maxSteps int
}

func New(tel telemetry.API, provider TargetProvider, minSteps, maxSteps int) (F, error) {
	if minSteps <= 0 || maxSteps < minSteps {
		return F{}, fmt.Errorf("invalid step range [%d, %d]", minSteps, maxSteps)
	}
	f := F{
		tel:      telemetry.NewScopedAPI("fuzzer", telemetry.OrDefault(tel)),
		provider: provider,
		minSteps: minSteps,
		maxSteps: maxSteps,
	}
	target, err := provider.CreateTarget(telemetry.NoopAPI{}, rand.New(rand.NewSource(0)))
	if err != nil {
		return F{}, err
	}
	f.steps, f.onEnd = targetMethods(target)
	if len(f.steps) == 0 {
		return F{}, errors.New("target has no steps")
	}
	return f, nil
}

func (f F) call(method reflect.Method, target Target, ctx context.Context, res *Results) []reflect.Value {
	return method.Func.Call([]reflect.Value{
		reflect.ValueOf(target),
		reflect.ValueOf(ctx),
		reflect.ValueOf(res),
	})
}

// RunPath replays a single path, tel receives the reports of the target.
func (f F) RunPath(ctx context.Context, tel telemetry.API, path Path) (*Results, error) {
	rndm := rand.New(rand.NewSource(path.Seed))
	target, err := f.provider.CreateTarget(tel, rndm)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	res := &Results{}
	for i := 0; i < path.Steps; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		step := f.steps[rndm.Intn(len(f.steps))]
		out := f.call(step, target, ctx, res)
		if err, _ := out[0].Interface().(error); err != nil {
			return nil, fmt.Errorf("step %d %s: %w", i, step.Name, err)
		}
	}
	if f.onEnd != nil {
		f.call(*f.onEnd, target, ctx, res)
	}
	return res, nil
}

// Explore runs one path per seed in [0, paths) on every cpu and returns the
// failing paths.
func (f F) Explore(ctx context.Context, paths int) ([]Failure, error) {
	seeds := make(chan int64)
	go func() {
		defer close(seeds)
		for seed := int64(0); seed < int64(paths); seed++ {
			select {
			case seeds <- seed:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu       sync.Mutex
		failures []Failure
		fatal    error
		wg       sync.WaitGroup
	)
	for range runtime.NumCPU() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seeds {
				rndm := rand.New(rand.NewSource(seed))
				path := Path{
					Seed:  seed,
					Steps: f.minSteps + rndm.Intn(f.maxSteps-f.minSteps+1),
				}
				res, err := f.RunPath(ctx, telemetry.NoopAPI{}, path)

				mu.Lock()
				if err != nil && fatal == nil {
					fatal = fmt.Errorf("path %s: %w", path, err)
				}
				if res != nil && len(res.failures) > 0 {
					failures = append(failures, Failure{Path: path, Results: res})
					f.tel.ReportBroken("path", Failure{Path: path, Results: res}.Error())
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	f.tel.ReportDebug("explored paths", "count", paths, "failures", len(failures))
	return failures, fatal
}
