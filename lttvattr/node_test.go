package lttvattr

import (
	"errors"
	"testing"
)

func TestFindOrCreateBuildsIntermediateBranches(t *testing.T) {
	root := NewBranch()

	leaf, err := root.FindOrCreate("cpu/0/events", KindULong)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if leaf.Kind() != KindULong {
		t.Fatalf("got kind %v, want ULong", leaf.Kind())
	}

	found, ok := root.Find("cpu/0/events")
	if !ok {
		t.Fatal("Find: not found after FindOrCreate")
	}
	if found != leaf {
		t.Fatal("Find returned a different node than FindOrCreate produced")
	}

	if _, ok := root.Find("cpu/0"); !ok {
		t.Fatal("intermediate branch cpu/0 was not created")
	}
}

func TestFindOrCreateTypeClash(t *testing.T) {
	root := NewBranch()
	if _, err := root.FindOrCreate("count", KindULong); err != nil {
		t.Fatalf("first FindOrCreate: %v", err)
	}
	_, err := root.FindOrCreate("count", KindString)
	if !errors.Is(err, ErrTypeClash) {
		t.Fatalf("got %v, want ErrTypeClash", err)
	}
}

func TestFindOrCreateNotBranch(t *testing.T) {
	root := NewBranch()
	if _, err := root.FindOrCreate("leaf", KindInt32); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	_, err := root.FindOrCreate("leaf/child", KindInt32)
	if !errors.Is(err, ErrNotBranch) {
		t.Fatalf("got %v, want ErrNotBranch", err)
	}
}

func TestPositionalOrderPreserved(t *testing.T) {
	root := NewBranch()
	root.AddPositional(Int32Leaf(1))
	root.AddPositional(Int32Leaf(2))
	root.AddPositional(Int32Leaf(3))

	if n := root.Number(); n != 3 {
		t.Fatalf("Number() = %d, want 3", n)
	}
	for i, want := range []int32{1, 2, 3} {
		name, node, ok := root.Get(i)
		if !ok || name != "" {
			t.Fatalf("Get(%d): name=%q ok=%v, want unnamed", i, name, ok)
		}
		if node.(Int32Leaf) != Int32Leaf(want) {
			t.Fatalf("Get(%d) = %v, want %d", i, node, want)
		}
	}
}

func TestShallowCopyAliasesAndRefcounts(t *testing.T) {
	root := NewBranch()
	root.SetLeaf("name", StringLeaf("init"))

	alias := root.ShallowCopy()
	if got := root.Refs(); got != 2 {
		t.Fatalf("Refs() after ShallowCopy = %d, want 2", got)
	}

	// Mutating through the alias is visible from root: they share storage.
	if err := alias.SetLeaf("name", StringLeaf("changed")); err != nil {
		t.Fatalf("SetLeaf via alias: %v", err)
	}
	node, ok := root.Find("name")
	if !ok {
		t.Fatal("name missing after alias mutation")
	}
	if node.(StringLeaf) != "changed" {
		t.Fatalf("root sees %v, want aliased mutation visible", node)
	}

	alias.Release()
	if got := root.Refs(); got != 1 {
		t.Fatalf("Refs() after Release = %d, want 1", got)
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	root := NewBranch()
	root.FindOrCreate("child/count", KindULong)

	clone := root.DeepCopy()
	clone.SetLeaf("child/count", ULongLeaf(42))

	orig, ok := root.Find("child/count")
	if !ok {
		t.Fatal("child/count missing from original")
	}
	if orig.(ULongLeaf) != 0 {
		t.Fatalf("original mutated by deep-copy change: got %v", orig)
	}

	got, ok := clone.Find("child/count")
	if !ok || got.(ULongLeaf) != 42 {
		t.Fatalf("clone.Find(child/count) = %v, %v, want 42, true", got, ok)
	}
}
