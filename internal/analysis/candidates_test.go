package analysis

import (
	"math/rand"
	"testing"

	"github.com/LyricZhao/DLMO/internal/trace"
)

// rematerializationCase: x is held across a workspace-heavy peak for the
// sake of a single late consumer.
//
//	A: ∅→x(4M)   B: x→y(1M)   P: ∅→u(1M, ws 10M)   C: x,u→v(1M)
func rematerializationCase() *trace.Schedule {
	x, y, u, v := op(0, 4*mib), op(1, mib), op(2, mib), op(3, mib)
	a := trace.NewTask("A", nil, []*trace.Operand{x}, 0, 1, nil)
	b := trace.NewTask("B", []*trace.Operand{x}, []*trace.Operand{y}, 0, 1000, nil)
	p := trace.NewTask("P", nil, []*trace.Operand{u}, 10*mib, 1000, nil)
	c := trace.NewTask("C", []*trace.Operand{x, u}, []*trace.Operand{v}, 0, 1000, nil)
	return build([]*trace.Operand{x, y, u, v}, []*trace.Task{a, b, p, c}, 3)
}

// moveCase: like rematerializationCase but without the intermediate
// consumer, so the generator itself can move past the peak.
func moveCase() *trace.Schedule {
	x, u, v := op(0, 4*mib), op(1, mib), op(2, mib)
	a := trace.NewTask("A", nil, []*trace.Operand{x}, 0, 1, nil)
	p := trace.NewTask("P", nil, []*trace.Operand{u}, 10*mib, 1000, nil)
	c := trace.NewTask("C", []*trace.Operand{x, u}, []*trace.Operand{v}, 0, 1000, nil)
	return build([]*trace.Operand{x, u, v}, []*trace.Task{a, p, c}, 2)
}

// closureCase: the inputs of C are overwritten with different versions
// before the late consumer, so replicating C alone would read wrong values.
//
//	A: s→p   B: p→q   C: q→r   H: ∅→h   P2: h→p   Q2: p→q   E: r→w
func closureCase() *trace.Schedule {
	s := op(0, mib)
	h := op(1, mib)
	p := op(2, mib)
	q := op(3, mib)
	r := op(4, mib)
	w := op(5, mib)
	ta := trace.NewTask("A", []*trace.Operand{s}, []*trace.Operand{p}, 0, 10, nil)
	tb := trace.NewTask("B", []*trace.Operand{p}, []*trace.Operand{q}, 0, 10, nil)
	tc := trace.NewTask("C", []*trace.Operand{q}, []*trace.Operand{r}, 0, 10, nil)
	th := trace.NewTask("H", nil, []*trace.Operand{h}, 0, 10, nil)
	tp2 := trace.NewTask("P2", []*trace.Operand{h}, []*trace.Operand{p}, 20*mib, 10, nil)
	tq2 := trace.NewTask("Q2", []*trace.Operand{p}, []*trace.Operand{q}, 0, 10, nil)
	te := trace.NewTask("E", []*trace.Operand{r}, []*trace.Operand{w}, 0, 10, nil)
	sched := build([]*trace.Operand{s, h, p, q, r, w},
		[]*trace.Task{ta, tb, tc, th, tp2, tq2, te}, 2, 3, 5)
	sched.Common.AlreadyOn.Set(0)
	return sched
}

func TestCandidateRematerialization(t *testing.T) {
	s := rematerializationCase()
	occs, err := Candidates(s, 3001, DefaultParams(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 1 {
		t.Fatalf("got %d candidates, want 1", len(occs))
	}
	occ := occs[0]
	if occ.Gen.Name != "A" || occ.Use.Name != "C" {
		t.Errorf("candidate is {%s, %s}, want {A, C}", occ.Gen.Name, occ.Use.Name)
	}
	if occ.Move {
		t.Error("move set although B consumes x before the peak")
	}
	if len(occ.ReGen) != 0 {
		t.Errorf("re_gen = %d tasks, want none", len(occ.ReGen))
	}
	// Rematerializing x frees 4M across the peak: the memory term must
	// reward the candidate.
	if occ.Score2 >= 0 {
		t.Errorf("score2 = %f, want negative (memory saved)", occ.Score2)
	}
}

func TestCandidateMove(t *testing.T) {
	s := moveCase()
	occs, err := Candidates(s, 2001, DefaultParams(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 1 {
		t.Fatalf("got %d candidates, want 1", len(occs))
	}
	occ := occs[0]
	if !occ.Move {
		t.Error("move not set although x has no consumer before C")
	}
}

func TestClosureExpansion(t *testing.T) {
	s := closureCase()
	occs, err := Candidates(s, 70, DefaultParams(1))
	if err != nil {
		t.Fatal(err)
	}

	var occ *trace.Occupy
	for _, o := range occs {
		if o.Gen.Name == "C" {
			occ = o
		}
	}
	if occ == nil {
		t.Fatalf("no candidate for generator C among %d candidates", len(occs))
	}
	if occ.Use.Name != "E" {
		t.Errorf("use = %s, want E", occ.Use.Name)
	}
	if len(occ.ReGen) != 2 || occ.ReGen[0].Name != "B" || occ.ReGen[1].Name != "A" {
		names := make([]string, len(occ.ReGen))
		for i, g := range occ.ReGen {
			names[i] = g.Name
		}
		t.Fatalf("re_gen = %v, want [B A]", names)
	}
	if len(occ.ReGen) > ReGenTaskLimit {
		t.Errorf("closure exceeded the replica bound")
	}
	// Only the entry operand s remains as an outside input.
	if len(occ.ReGenIns) != 1 || occ.ReGenIns[0].Operand.ID != 0 {
		t.Errorf("re_gen_ins = %v", occ.ReGenIns)
	}
}

func TestClosureBoundRejects(t *testing.T) {
	s := closureCase()
	params := DefaultParams(1)
	params.ReGenTaskLimit = 1
	occs, err := Candidates(s, 70, params)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range occs {
		if o.Gen.Name == "C" {
			t.Error("candidate for C survived a replica bound it cannot meet")
		}
	}
}

func TestPrune(t *testing.T) {
	gen := func(name string) *trace.Task {
		return trace.NewTask(name, nil, nil, 0, 0, nil)
	}
	mk := func(name string, s1, s2 float64) *trace.Occupy {
		return &trace.Occupy{Gen: gen(name), Score1: s1, Score2: s2}
	}
	occs := []*trace.Occupy{
		mk("a", 0.1, 0.9),
		mk("b", 0.2, 0.8),
		mk("c", 0.9, 0.1),
		mk("d", 0.8, 0.2),
		mk("e", 0.5, 0.5),
	}
	p := Params{O1OccupiesLimit: 2, O2OccupiesLimit: 2}

	kept := prune(occs, p)
	if len(kept) != 4 {
		t.Fatalf("kept %d candidates, want 4", len(kept))
	}
	names := map[string]bool{}
	for _, o := range kept {
		names[o.Gen.Name] = true
	}
	for _, want := range []string{"a", "b", "c", "d"} {
		if !names[want] {
			t.Errorf("candidate %s pruned away", want)
		}
	}
}

func TestPruneDeduplicates(t *testing.T) {
	g := trace.NewTask("g", nil, nil, 0, 0, nil)
	best := &trace.Occupy{Gen: g, Score1: 0.1, Score2: 0.1}
	p := Params{O1OccupiesLimit: 2, O2OccupiesLimit: 2}

	kept := prune([]*trace.Occupy{best}, p)
	if len(kept) != 1 {
		t.Errorf("kept %d entries for one generator, want 1", len(kept))
	}
}

func TestPruneRandomPickDeterministic(t *testing.T) {
	var occs []*trace.Occupy
	for i := 0; i < 16; i++ {
		g := trace.NewTask("g", nil, nil, uint64(i), 0, nil)
		occs = append(occs, &trace.Occupy{Gen: g, Score1: float64(i), Score2: float64(i)})
	}
	pick := func(seed int64) []uint64 {
		p := Params{O1OccupiesLimit: 1, O2OccupiesLimit: 1, TimesPerRandom: 1,
			Rand: rand.New(rand.NewSource(seed))}
		var ids []uint64
		for _, o := range prune(occs, p) {
			ids = append(ids, o.Gen.Workspace)
		}
		return ids
	}

	first, second := pick(7), pick(7)
	if len(first) != len(second) {
		t.Fatal("seeded pruning is not deterministic")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Error("seeded pruning is not deterministic")
		}
	}
}
