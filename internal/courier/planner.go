// Package courier implements the capacitated pickup-and-delivery planner:
// distance table, greedy seed construction, block-reinsertion and
// pairwise-swap local search, depot attachment, and time-budgeted parallel
// restarts, fanned out over a sync.WaitGroup/buffered-channel worker pool.
package courier

import (
	"context"
	"log"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/roadgraph"
	"github.com/streetmap/roadcore/internal/routing"
)

// Options configures the planner. Zero value is not valid; use
// DefaultOptions.
type Options struct {
	Deadline            time.Duration
	SimulatedAnnealing  bool
	Workers             int
}

// DefaultOptions returns a 45-second wall-clock budget (overridden by a
// parseable COURIER_DEADLINE duration), simulated annealing disabled, and
// one worker per CPU.
func DefaultOptions() Options {
	return Options{
		Deadline:           getCourierDeadline(),
		SimulatedAnnealing: false,
		Workers:            runtime.NumCPU(),
	}
}

func getCourierDeadline() time.Duration {
	if v := os.Getenv("COURIER_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 45 * time.Second
}

// Planner runs traveling_courier over idx.
type Planner struct {
	idx  *roadgraph.Index
	opts Options
}

// NewPlanner builds a Planner with DefaultOptions.
func NewPlanner(idx *roadgraph.Index) *Planner {
	return &Planner{idx: idx, opts: DefaultOptions()}
}

// WithOptions overrides the planner's options and returns the same
// Planner, for chaining at construction.
func (p *Planner) WithOptions(o Options) *Planner {
	p.opts = o
	return p
}

// stopRef is one scheduled stop: a pickup or dropoff of one delivery.
type stopRef struct {
	deliveryIdx int
	pickup      bool
}

func (s stopRef) node(deliveries []models.Delivery) int32 {
	if s.pickup {
		return deliveries[s.deliveryIdx].Pickup
	}
	return deliveries[s.deliveryIdx].Dropoff
}

// distEntry is one T[a][b] cell.
type distEntry struct {
	Segments []int32
	TimeSec  float64
}

type distTable map[int32]map[int32]distEntry

func (t distTable) lookup(a, b int32) (distEntry, bool) {
	if a == b {
		return distEntry{TimeSec: 0}, true
	}
	row, ok := t[a]
	if !ok {
		return distEntry{}, false
	}
	e, ok := row[b]
	return e, ok
}

type depotEntry struct {
	StartDepot int32
	Segments   []int32
	TimeSec    float64
}

// Plan runs the full courier pipeline. It never returns an error for a
// routing failure — an infeasible or empty problem yields an empty slice.
// The returned error is always nil: cancellation or deadline expiry before
// any feasible route was constructed also yields an empty slice.
func (p *Planner) Plan(ctx context.Context, deliveries []models.Delivery, depots []models.Depot, rightPenalty, leftPenalty, capacity float64) ([]models.RouteElement, error) {
	runID := uuid.New().String()

	if len(deliveries) == 0 || len(depots) == 0 {
		return []models.RouteElement{}, nil
	}
	for _, d := range deliveries {
		if d.Weight > capacity {
			return []models.RouteElement{}, nil
		}
	}

	deadline := time.Now().Add(p.opts.Deadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log.Printf("courier[%s]: planning %d deliveries over %d depots, capacity %.1f", runID, len(deliveries), len(depots), capacity)

	T, TDepot := p.buildDistanceTables(ctx, deliveries, depots, rightPenalty, leftPenalty)

	best := p.parallelRestarts(ctx, runID, deliveries, depots, capacity, T, TDepot, deadline)
	if best == nil {
		log.Printf("courier[%s]: no feasible route found", runID)
		return []models.RouteElement{}, nil
	}
	log.Printf("courier[%s]: done, %d route elements", runID, len(best))
	return best, nil
}

// buildDistanceTables is Stage A: one many-to-many search per element of
// the pickup/dropoff set (fanned out over a worker pool, teacher-style),
// plus one depot-to-pickups search.
func (p *Planner) buildDistanceTables(ctx context.Context, deliveries []models.Delivery, depots []models.Depot, rightPenalty, leftPenalty float64) (distTable, map[int32]depotEntry) {
	nodeSet := make(map[int32]bool)
	var pickups []int32
	for _, d := range deliveries {
		nodeSet[d.Pickup] = true
		nodeSet[d.Dropoff] = true
		pickups = append(pickups, d.Pickup)
	}
	var I []int32
	for n := range nodeSet {
		I = append(I, n)
	}
	var depotNodes []int32
	for _, d := range depots {
		depotNodes = append(depotNodes, int32(d))
	}
	destinations := append(append([]int32{}, I...), depotNodes...)

	T := make(distTable, len(I))
	var mu sync.WaitGroup
	var tableMu sync.Mutex

	workers := p.opts.Workers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int32, len(I))
	for _, a := range I {
		jobs <- a
	}
	close(jobs)

	for w := 0; w < workers; w++ {
		mu.Add(1)
		go func() {
			defer mu.Done()
			for a := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res := routing.MultiSourcePaths(p.idx, []int32{a}, destinations, rightPenalty, leftPenalty)
				row := make(map[int32]distEntry, len(res))
				for dest, sp := range res {
					row[dest] = distEntry{Segments: sp.Segments, TimeSec: sp.TimeSec}
				}
				tableMu.Lock()
				T[a] = row
				tableMu.Unlock()
			}
		}()
	}
	mu.Wait()

	depotRes := routing.MultiSourcePaths(p.idx, depotNodes, pickups, rightPenalty, leftPenalty)
	TDepot := make(map[int32]depotEntry, len(depotRes))
	for pickupNode, sp := range depotRes {
		TDepot[pickupNode] = depotEntry{StartDepot: sp.Source, Segments: sp.Segments, TimeSec: sp.TimeSec}
	}

	return T, TDepot
}

// parallelRestarts is Stage E: Stages B-D run once per possible starting
// delivery, fanned out across a worker pool, observing deadline. The best
// complete route across all workers wins; ties resolve to the
// first-reporting worker (enforced by only ever replacing best on a
// strictly smaller cost).
func (p *Planner) parallelRestarts(ctx context.Context, runID string, deliveries []models.Delivery, depots []models.Depot, capacity float64, T distTable, TDepot map[int32]depotEntry, deadline time.Time) []models.RouteElement {
	type candidate struct {
		elements []models.RouteElement
		cost     float64
	}

	workers := p.opts.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, len(deliveries))
	for d0 := range deliveries {
		jobs <- d0
	}
	close(jobs)

	results := make(chan candidate, len(deliveries))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			restart := 0
			for d0 := range jobs {
				if time.Now().After(deadline) {
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}

				rng := rand.New(rand.NewSource(seedFor(worker, restart)))
				restart++

				seed, ok := buildSeed(deliveries, d0, T, capacity)
				if !ok {
					continue
				}
				improved := improve(seed, deliveries, T, capacity, deadline)
				if p.opts.SimulatedAnnealing && len(improved) >= 6 {
					improved = anneal(improved, deliveries, T, capacity, deadline, rng)
				}
				elements, cost, ok := attachDepots(improved, deliveries, depots, T, TDepot)
				if !ok {
					continue
				}
				results <- candidate{elements: elements, cost: cost}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var best *candidate
	for c := range results {
		c := c
		if best == nil || c.cost < best.cost {
			best = &c
			log.Printf("courier[%s]: new best route, cost %.1fs", runID, best.cost)
		}
	}

	if best == nil {
		return nil
	}
	return best.elements
}

// seedFor derives a deterministic RNG seed from worker and restart index
// (100*worker + 5*restart + 31) rather than from wall-clock time, so
// restarts are reproducible for a fixed worker count and job order.
func seedFor(worker, restart int) int64 {
	return int64(100*worker + 5*restart + 31)
}

func sequenceFeasible(deliveries []models.Delivery, stops []stopRef, capacity float64) bool {
	n := len(deliveries)
	pickedUp := make([]bool, n)
	droppedOff := make([]bool, n)
	var load float64
	for _, s := range stops {
		if s.pickup {
			if pickedUp[s.deliveryIdx] {
				return false
			}
			pickedUp[s.deliveryIdx] = true
			load += deliveries[s.deliveryIdx].Weight
			if load > capacity+1e-9 {
				return false
			}
		} else {
			if !pickedUp[s.deliveryIdx] || droppedOff[s.deliveryIdx] {
				return false
			}
			droppedOff[s.deliveryIdx] = true
			load -= deliveries[s.deliveryIdx].Weight
		}
	}
	return true
}

func sequenceCost(stops []stopRef, deliveries []models.Delivery, T distTable) (float64, bool) {
	var total float64
	for i := 0; i+1 < len(stops); i++ {
		e, ok := T.lookup(stops[i].node(deliveries), stops[i+1].node(deliveries))
		if !ok {
			return 0, false
		}
		total += e.TimeSec
	}
	return total, true
}

// buildSeed is Stage B: greedy nearest-feasible construction starting from
// the pickup of deliveries[d0].
func buildSeed(deliveries []models.Delivery, d0 int, T distTable, capacity float64) ([]stopRef, bool) {
	n := len(deliveries)
	stops := []stopRef{{deliveryIdx: d0, pickup: true}}
	pickedUp := make([]bool, n)
	droppedOff := make([]bool, n)
	pickedUp[d0] = true
	load := deliveries[d0].Weight
	current := deliveries[d0].Pickup

	for scheduled := 1; scheduled < 2*n; scheduled++ {
		bestPickup, bestDropoff := -1, -1
		bestPickupTime, bestDropoffTime := math.Inf(1), math.Inf(1)

		for d := 0; d < n; d++ {
			if pickedUp[d] || load+deliveries[d].Weight > capacity {
				continue
			}
			if e, ok := T.lookup(current, deliveries[d].Pickup); ok && e.TimeSec < bestPickupTime {
				bestPickupTime, bestPickup = e.TimeSec, d
			}
		}
		for d := 0; d < n; d++ {
			if !pickedUp[d] || droppedOff[d] {
				continue
			}
			if e, ok := T.lookup(current, deliveries[d].Dropoff); ok && e.TimeSec < bestDropoffTime {
				bestDropoffTime, bestDropoff = e.TimeSec, d
			}
		}

		switch {
		case bestPickup == -1 && bestDropoff == -1:
			return nil, false
		case bestDropoff != -1 && bestDropoffTime <= bestPickupTime:
			stops = append(stops, stopRef{deliveryIdx: bestDropoff, pickup: false})
			droppedOff[bestDropoff] = true
			load -= deliveries[bestDropoff].Weight
			current = deliveries[bestDropoff].Dropoff
		default:
			stops = append(stops, stopRef{deliveryIdx: bestPickup, pickup: true})
			pickedUp[bestPickup] = true
			load += deliveries[bestPickup].Weight
			current = deliveries[bestPickup].Pickup
		}
	}
	return stops, true
}

// improve is Stage C: first-improvement block reinsertion (all 23
// orderings over every cut-point triple), then first-improvement pairwise
// swap, repeated until a full pass of both finds nothing, or the deadline
// is reached.
func improve(stops []stopRef, deliveries []models.Delivery, T distTable, capacity float64, deadline time.Time) []stopRef {
	best := stops
	bestCost, ok := sequenceCost(best, deliveries, T)
	if !ok {
		return stops
	}

	for {
		if time.Now().After(deadline) {
			return best
		}
		next, nextCost, found := blockReinsertionPass(best, deliveries, T, capacity, bestCost, deadline)
		if found {
			best, bestCost = next, nextCost
			continue
		}
		next, nextCost, found = pairSwapPass(best, deliveries, T, capacity, bestCost, deadline)
		if found {
			best, bestCost = next, nextCost
			continue
		}
		return best
	}
}

func blockReinsertionPass(stops []stopRef, deliveries []models.Delivery, T distTable, capacity float64, currentCost float64, deadline time.Time) ([]stopRef, float64, bool) {
	n := len(stops)
	for i := 1; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				if time.Now().After(deadline) {
					return stops, currentCost, false
				}
				for _, order := range blockPermutations {
					candidate := applyBlockOrder(stops, i, j, k, order)
					if !sequenceFeasible(deliveries, candidate, capacity) {
						continue
					}
					cost, ok := sequenceCost(candidate, deliveries, T)
					if ok && cost < currentCost {
						return candidate, cost, true
					}
				}
			}
		}
	}
	return stops, currentCost, false
}

func pairSwapPass(stops []stopRef, deliveries []models.Delivery, T distTable, capacity float64, currentCost float64, deadline time.Time) ([]stopRef, float64, bool) {
	n := len(stops)
	for i := 0; i < n; i++ {
		if time.Now().After(deadline) {
			return stops, currentCost, false
		}
		for j := i + 1; j < n; j++ {
			candidate := append([]stopRef(nil), stops...)
			candidate[i], candidate[j] = candidate[j], candidate[i]
			if !sequenceFeasible(deliveries, candidate, capacity) {
				continue
			}
			cost, ok := sequenceCost(candidate, deliveries, T)
			if ok && cost < currentCost {
				return candidate, cost, true
			}
		}
	}
	return stops, currentCost, false
}

// anneal applies a geometric-cooling simulated-annealing pass on top of a
// locally-improved sequence: random pairwise swaps are accepted outright
// when they improve cost, and accepted with probability exp(-delta/temp)
// otherwise. Opt-in via Options.SimulatedAnnealing; disabled by default.
func anneal(stops []stopRef, deliveries []models.Delivery, T distTable, capacity float64, deadline time.Time, rng *rand.Rand) []stopRef {
	current := stops
	currentCost, ok := sequenceCost(current, deliveries, T)
	if !ok {
		return stops
	}
	best := current
	bestCost := currentCost

	temp := currentCost / 10
	if temp <= 0 {
		temp = 1
	}
	const coolingRate = 0.97
	const minTemp = 0.01

	for temp > minTemp {
		if time.Now().After(deadline) {
			break
		}
		n := len(current)
		i, j := rng.Intn(n), rng.Intn(n)
		if i == j {
			continue
		}
		candidate := append([]stopRef(nil), current...)
		candidate[i], candidate[j] = candidate[j], candidate[i]
		if !sequenceFeasible(deliveries, candidate, capacity) {
			temp *= coolingRate
			continue
		}
		cost, ok := sequenceCost(candidate, deliveries, T)
		if !ok {
			temp *= coolingRate
			continue
		}
		delta := cost - currentCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			current, currentCost = candidate, cost
			if currentCost < bestCost {
				best, bestCost = current, currentCost
			}
		}
		temp *= coolingRate
	}
	return best
}

// attachDepots is Stage D: prepend the starting depot minimizing
// TDepot[firstPickup].time, append the closing depot minimizing
// T[lastStop][depot].time.
func attachDepots(stops []stopRef, deliveries []models.Delivery, depots []models.Depot, T distTable, TDepot map[int32]depotEntry) ([]models.RouteElement, float64, bool) {
	if len(stops) == 0 {
		return nil, 0, false
	}
	firstNode := stops[0].node(deliveries)
	startEntry, ok := TDepot[firstNode]
	if !ok {
		return nil, 0, false
	}

	lastNode := stops[len(stops)-1].node(deliveries)
	bestDepot := int32(-1)
	var bestEntry distEntry
	bestTime := math.Inf(1)
	for _, d := range depots {
		node := int32(d)
		e, ok := T.lookup(lastNode, node)
		if ok && e.TimeSec < bestTime {
			bestTime, bestDepot, bestEntry = e.TimeSec, node, e
		}
	}
	if bestDepot == -1 {
		return nil, 0, false
	}

	elements := make([]models.RouteElement, 0, len(stops)+1)
	elements = append(elements, models.RouteElement{
		Start:    startEntry.StartDepot,
		End:      firstNode,
		Segments: startEntry.Segments,
	})

	totalCost := startEntry.TimeSec
	for i := 0; i+1 < len(stops); i++ {
		e, ok := T.lookup(stops[i].node(deliveries), stops[i+1].node(deliveries))
		if !ok {
			return nil, 0, false
		}
		var pickupIndices []int
		if stops[i].pickup {
			pickupIndices = []int{stops[i].deliveryIdx}
		}
		elements = append(elements, models.RouteElement{
			Start:         stops[i].node(deliveries),
			End:           stops[i+1].node(deliveries),
			Segments:      e.Segments,
			PickupIndices: pickupIndices,
		})
		totalCost += e.TimeSec
	}

	var lastPickupIndices []int
	if stops[len(stops)-1].pickup {
		lastPickupIndices = []int{stops[len(stops)-1].deliveryIdx}
	}
	elements = append(elements, models.RouteElement{
		Start:         lastNode,
		End:           bestDepot,
		Segments:      bestEntry.Segments,
		PickupIndices: lastPickupIndices,
	})
	totalCost += bestTime

	return elements, totalCost, true
}

