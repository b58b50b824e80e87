package eventbus

import "testing"

type runDone struct{ site string }

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish(runDone{site: "behounkova"})
	v := <-ch
	ev, ok := v.(runDone)
	if !ok || ev.site != "behounkova" {
		t.Fatalf("unexpected event %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusFanOut(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Publish("hello")
	if v := <-ch1; v != "hello" {
		t.Fatalf("ch1 got %v", v)
	}
	if v := <-ch2; v != "hello" {
		t.Fatalf("ch2 got %v", v)
	}
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
}
