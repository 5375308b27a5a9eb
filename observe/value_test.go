package observe

import "testing"

func TestGetSet(t *testing.T) {
	v := NewValue("initial")
	if got := v.Get(); got != "initial" {
		t.Errorf("Get() = %q, want %q", got, "initial")
	}
	v.Set("updated")
	if got := v.Get(); got != "updated" {
		t.Errorf("Get() = %q, want %q", got, "updated")
	}
}

func TestNilValueReadsZero(t *testing.T) {
	var v *Value[int]
	if got := v.Get(); got != 0 {
		t.Errorf("nil Get() = %d, want 0", got)
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	v := NewValue(0)
	ch := v.Subscribe()

	// Publish without the subscriber draining; only the newest snapshot
	// must remain buffered.
	v.Set(1)
	v.Set(2)
	v.Set(3)

	select {
	case got := <-ch:
		if got != 3 {
			t.Errorf("received %d, want 3", got)
		}
	default:
		t.Fatal("no snapshot buffered")
	}

	select {
	case got := <-ch:
		t.Errorf("unexpected extra snapshot %d", got)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	v := NewValue(0)
	ch := v.Subscribe()
	v.Unsubscribe(ch)

	v.Set(1)
	select {
	case got := <-ch:
		t.Errorf("received %d after Unsubscribe", got)
	default:
	}
}

func TestMultipleSubscribers(t *testing.T) {
	v := NewValue(0)
	a := v.Subscribe()
	b := v.Subscribe()

	v.Set(7)
	for name, ch := range map[string]<-chan int{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got != 7 {
				t.Errorf("subscriber %s received %d, want 7", name, got)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}
