package utils_test

import (
	"testing"

	"github.com/dbasic-lang/dbc/pkg/utils"
)

func TestOrderedMap(t *testing.T) {
	t.Run("Iteration follows insertion order", func(t *testing.T) {
		om := utils.NewOrderedMap[string, int]()
		om.Set("first", 1)
		om.Set("second", 2)
		om.Set("third", 3)

		keys, values := []string{}, []int{}
		om.Entries()(func(key string, value int) bool {
			keys = append(keys, key)
			values = append(values, value)
			return true
		})

		for i, want := range []string{"first", "second", "third"} {
			if keys[i] != want {
				t.Errorf("key %d: expected %q, got %q", i, want, keys[i])
			}
			if values[i] != i+1 {
				t.Errorf("value %d: expected %d, got %d", i, i+1, values[i])
			}
		}
	})

	t.Run("Updates keep the original position", func(t *testing.T) {
		om := utils.NewOrderedMap[string, int]()
		om.Set("first", 1)
		om.Set("second", 2)
		om.Set("first", 10)

		if om.Size() != 2 {
			t.Fatalf("expected 2 entries, got %d", om.Size())
		}
		if keys := om.Keys(); keys[0] != "first" || keys[1] != "second" {
			t.Errorf("unexpected key order: %v", keys)
		}
		if value, found := om.Get("first"); !found || value != 10 {
			t.Errorf("expected the updated value 10, got %d (found: %t)", value, found)
		}
	})

	t.Run("Get and Has on missing keys", func(t *testing.T) {
		om := utils.NewOrderedMap[string, int]()
		if om.Has("nope") {
			t.Error("expected Has to be false on an empty map")
		}
		if _, found := om.Get("nope"); found {
			t.Error("expected Get to report a miss")
		}
	})

	t.Run("Construction from an entry list", func(t *testing.T) {
		om := utils.NewOrderedMapFromList([]utils.MapEntry[string, string]{
			{Key: "a", Value: "1"}, {Key: "b", Value: "2"},
		})
		if keys := om.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Errorf("unexpected key order: %v", keys)
		}
	})
}

func TestStack(t *testing.T) {
	stack := utils.NewStack[string]()
	stack.Push("rdi")
	stack.Push("rsi")
	stack.Push("rdx")

	t.Run("Iterator yields top-first", func(t *testing.T) {
		popped := []string{}
		stack.Iterator()(func(element string) bool {
			popped = append(popped, element)
			return true
		})
		for i, want := range []string{"rdx", "rsi", "rdi"} {
			if popped[i] != want {
				t.Errorf("element %d: expected %q, got %q", i, want, popped[i])
			}
		}
	})

	t.Run("Pop empties in reverse order", func(t *testing.T) {
		if top, err := stack.Top(); err != nil || top != "rdx" {
			t.Errorf("expected rdx on top, got %q (%v)", top, err)
		}
		for _, want := range []string{"rdx", "rsi", "rdi"} {
			element, err := stack.Pop()
			if err != nil || element != want {
				t.Errorf("expected to pop %q, got %q (%v)", want, element, err)
			}
		}
		if _, err := stack.Pop(); err == nil {
			t.Error("expected an error popping an empty stack")
		}
	})
}
