package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTrace(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleTrace = `{
  "data": [
    {"id": 0, "size": 4096, "dtype": "float32"},
    {"id": 1, "size": 1024},
    {"id": 2, "size": 1024},
    {"id": 3, "size": 2048},
    {"id": 4, "size": 1024}
  ],
  "code": [
    {"name": "conv", "ins": [0], "outs": [1], "workspace": 512, "time": 5.0, "attr": {"kernel": [3, 3]}},
    {"name": ".share", "ins": [1], "outs": [4]},
    {"name": "relu", "ins": [4], "outs": [2], "workspace": 0, "time": 1.0, "attr": null},
    {"name": ".dealloc", "ins": [], "outs": [1]},
    {"name": "fc", "ins": [2], "outs": [3], "workspace": 0, "time": 2.5, "attr": null}
  ]
}`

func TestLoad(t *testing.T) {
	s, err := Load(writeTrace(t, sampleTrace))
	if err != nil {
		t.Fatal(err)
	}

	// Pseudo-ops are folded away.
	if len(s.Tasks) != 3 {
		t.Fatalf("got %d working tasks, want 3", len(s.Tasks))
	}
	for _, task := range s.Tasks {
		if task.IsDealloc() || task.IsShare() {
			t.Errorf("pseudo-op %s survived refactoring", task.Name)
		}
	}

	// The weights operand is consumed before any production.
	if !s.Common.AlreadyOn.Test(0) {
		t.Error("operand 0 not discovered as already_on")
	}
	if s.Common.AlreadyOn.Count() != 1 {
		t.Errorf("already_on has %d operands, want 1", s.Common.AlreadyOn.Count())
	}

	// Resident at exit: weights, relu output, fc output.
	for _, id := range []uint{0, 2, 3} {
		if !s.Common.NotDealloc.Test(id) {
			t.Errorf("operand %d not in not_dealloc", id)
		}
	}
	if s.Common.NotDealloc.Test(1) {
		t.Error("deallocated operand 1 in not_dealloc")
	}

	// `.share` renames the alias to its source.
	relu := s.Tasks[1]
	if relu.Name != "relu" || relu.Ins[0].Operand.ID != 1 {
		t.Errorf("share alias not renamed: relu reads operand %d", relu.Ins[0].Operand.ID)
	}

	// Microseconds convert to nanoseconds.
	if s.Tasks[0].Duration != 5000 {
		t.Errorf("conv duration = %d ns, want 5000", s.Tasks[0].Duration)
	}

	// The operand attribute blob is preserved.
	if !strings.Contains(string(s.Common.Operands[0].Attr), "float32") {
		t.Error("operand attr blob lost")
	}
}

func TestLoadRejectsForbidden(t *testing.T) {
	trace := `{
	  "data": [{"id": 0, "size": 1024}],
	  "code": [{"name": ".host2device", "ins": [], "outs": [0], "workspace": 0, "time": 1.0, "attr": null}]
	}`
	if _, err := Load(writeTrace(t, trace)); err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Errorf("expected forbidden pseudo-op error, got %v", err)
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"no name": `{"data": [{"id": 0, "size": 1}],
			"code": [{"ins": [], "outs": [0], "workspace": 0, "time": 1.0}]}`,
		"no time": `{"data": [{"id": 0, "size": 1}],
			"code": [{"name": "a", "ins": [], "outs": [0], "workspace": 0}]}`,
		"no size": `{"data": [{"id": 0}], "code": []}`,
		"sparse ids": `{"data": [{"id": 1, "size": 1}], "code": []}`,
		"duplicate ids": `{"data": [{"id": 0, "size": 1}, {"id": 0, "size": 2}], "code": []}`,
	}
	for name, content := range cases {
		if _, err := Load(writeTrace(t, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	if _, err := Load(writeTrace(t, `{"data": [}`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRejectsUseAfterDealloc(t *testing.T) {
	trace := `{
	  "data": [{"id": 0, "size": 1024}, {"id": 1, "size": 1024}],
	  "code": [
	    {"name": "a", "ins": [], "outs": [0], "workspace": 0, "time": 1.0, "attr": null},
	    {"name": ".dealloc", "ins": [], "outs": [0]},
	    {"name": "b", "ins": [0], "outs": [1], "workspace": 0, "time": 1.0, "attr": null}
	  ]
	}`
	if _, err := Load(writeTrace(t, trace)); err == nil {
		t.Error("expected liveness error")
	}
}
