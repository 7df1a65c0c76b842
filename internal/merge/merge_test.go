package merge

import "testing"

func TestMerge3NoChanges(t *testing.T) {
	base := "a\nb\nc"
	merged, conflicts := Merge3(base, base, base)
	if conflicts {
		t.Fatalf("expected no conflicts")
	}
	if merged != base {
		t.Fatalf("expected unchanged output, got %q", merged)
	}
}

func TestMerge3LocalOnlyChange(t *testing.T) {
	base := "a\nb\nc"
	local := "a\nB\nc"
	remote := "a\nb\nc"
	merged, conflicts := Merge3(base, local, remote)
	if conflicts {
		t.Fatalf("expected no conflicts")
	}
	if merged != local {
		t.Fatalf("expected local's change to win, got %q", merged)
	}
}

func TestMerge3RemoteOnlyChange(t *testing.T) {
	base := "a\nb\nc"
	local := "a\nb\nc"
	remote := "a\nB\nc"
	merged, conflicts := Merge3(base, local, remote)
	if conflicts {
		t.Fatalf("expected no conflicts")
	}
	if merged != remote {
		t.Fatalf("expected remote's change to win, got %q", merged)
	}
}

func TestMerge3ConvergentChange(t *testing.T) {
	base := "a\nb\nc"
	local := "a\nB\nc"
	remote := "a\nB\nc"
	merged, conflicts := Merge3(base, local, remote)
	if conflicts {
		t.Fatalf("expected no conflicts")
	}
	if merged != local {
		t.Fatalf("expected convergent change, got %q", merged)
	}
}

func TestMerge3DivergentChangeEmitsMarkers(t *testing.T) {
	base := "a\nb\nc"
	local := "a\nLOCAL\nc"
	remote := "a\nREMOTE\nc"
	merged, conflicts := Merge3(base, local, remote)
	if !conflicts {
		t.Fatalf("expected conflicts")
	}
	for _, marker := range []string{"<<<<<<< LOCAL", "||||||| BASE", "=======", ">>>>>>> REMOTE"} {
		if !contains(merged, marker) {
			t.Fatalf("expected merged output to contain %q, got:\n%s", marker, merged)
		}
	}
	if !contains(merged, "LOCAL") || !contains(merged, "REMOTE") {
		t.Fatalf("expected both sides preserved in conflict hunk, got:\n%s", merged)
	}
}

func TestMerge3NonConflictingEditsAtDifferentLines(t *testing.T) {
	base := "one\ntwo\nthree\nfour"
	local := "ONE\ntwo\nthree\nfour"
	remote := "one\ntwo\nthree\nFOUR"
	merged, conflicts := Merge3(base, local, remote)
	if conflicts {
		t.Fatalf("expected no conflicts, got:\n%s", merged)
	}
	want := "ONE\ntwo\nthree\nFOUR"
	if merged != want {
		t.Fatalf("expected %q, got %q", want, merged)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
