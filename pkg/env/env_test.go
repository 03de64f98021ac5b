package env

import (
	"testing"

	"github.com/machine-dialect/mdc/pkg/value"
)

func TestDefineAndGet(t *testing.T) {
	e := New()
	e.Define("x", value.NewInteger(1))
	v, ok := e.Get("x")
	if !ok || v.(*value.Integer).Value != 1 {
		t.Fatalf("Get(x) = %v, %v", v, ok)
	}
	if _, ok := e.Get("missing"); ok {
		t.Fatal("Get of an unbound name should report false")
	}
}

func TestSetMutatesNearestAncestorBinding(t *testing.T) {
	parent := New()
	parent.Define("x", value.NewInteger(1))
	child := NewEnclosed(parent)

	child.Set("x", value.NewInteger(2))

	v, _ := parent.Get("x")
	if v.(*value.Integer).Value != 2 {
		t.Fatal("Set on a child scope should mutate the ancestor binding, not shadow it")
	}
	if _, ok := child.Get("x"); !ok {
		t.Fatal("child should still see x through the parent chain")
	}
}

func TestSetWithNoExistingBindingDefinesLocally(t *testing.T) {
	e := New()
	e.Set("y", value.NewInteger(5))
	v, ok := e.Get("y")
	if !ok || v.(*value.Integer).Value != 5 {
		t.Fatal("Set with no prior binding should define it locally")
	}
}

func TestDefineShadowsOuterBinding(t *testing.T) {
	parent := New()
	parent.Define("x", value.NewInteger(1))
	child := NewEnclosed(parent)
	child.Define("x", value.NewInteger(99))

	childVal, _ := child.Get("x")
	parentVal, _ := parent.Get("x")
	if childVal.(*value.Integer).Value != 99 {
		t.Fatal("child's own Define should be visible in the child")
	}
	if parentVal.(*value.Integer).Value != 1 {
		t.Fatal("child's Define must not leak into the parent frame")
	}
}

func TestNamesIsFrameLocal(t *testing.T) {
	parent := New()
	parent.Define("outer", value.NewInteger(1))
	child := NewEnclosed(parent)
	child.Define("inner", value.NewInteger(2))

	names := child.Names()
	if len(names) != 1 || names[0] != "inner" {
		t.Fatalf("Names() = %v, want [inner] (frame-local only)", names)
	}
}

func TestMustGetPanicsOnUnboundName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustGet should panic on an unbound name")
		}
	}()
	New().MustGet("nope")
}
