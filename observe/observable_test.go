package observe

import (
	"testing"
)

func TestObservableGetSet(t *testing.T) {
	o := New(map[string]interface{}{"likes": "tacos"})

	if v := o.Get()["likes"]; v != "tacos" {
		t.Fatalf("likes == %#v", v)
	}

	o.Set(map[string]interface{}{"likes": "queso"})

	if v := o.Get()["likes"]; v != "queso" {
		t.Fatalf("likes == %#v", v)
	}
}

func TestObservableNotify(t *testing.T) {
	o := New(map[string]interface{}{"count": 0})

	var heard []Change
	o.On(func(c Change) {
		heard = append(heard, c)
	})

	o.Set(map[string]interface{}{"count": 1})
	o.Set(map[string]interface{}{"count": 2})

	if len(heard) != 2 {
		t.Fatalf("heard %d changes", len(heard))
	}

	if heard[0].Previous["count"] != 0 || heard[0].Current["count"] != 1 {
		t.Fatalf("first change %#v", heard[0])
	}

	if heard[1].Previous["count"] != 1 || heard[1].Current["count"] != 2 {
		t.Fatalf("second change %#v", heard[1])
	}
}

func TestObservableObserverOrder(t *testing.T) {
	o := New(nil)

	order := make([]string, 0, 2)
	o.On(func(Change) {
		order = append(order, "first")
	})
	o.On(func(Change) {
		order = append(order, "second")
	})

	o.Set(map[string]interface{}{})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order == %#v", order)
	}
}

func TestObservableNilInitial(t *testing.T) {
	o := New(nil)
	if o.Get() == nil {
		t.Fatal("expected a non-nil snapshot")
	}
}
