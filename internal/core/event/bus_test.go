package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l1jgo/thallium/internal/core/ecs"
)

type ping struct{ N int }

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.N) })

	Emit(b, ping{1})
	Emit(b, ping{2})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got, "nothing is delivered before the swap")

	b.SwapBuffers()
	assert.Equal(t, 0, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []int{1, 2}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1, 2}, got, "events are delivered once")
}

func TestBusDispatchOrderByFirstEmission(t *testing.T) {
	b := NewBus()
	var log []string
	Subscribe(b, func(EntityDestroyed) { log = append(log, "destroyed") })
	Subscribe(b, func(EntitySpawned) { log = append(log, "spawned") })

	Emit(b, EntitySpawned{Entity: ecs.NewEntity(0, 1)})
	Emit(b, EntityDestroyed{Entity: ecs.NewEntity(0, 1)})
	Emit(b, EntitySpawned{Entity: ecs.NewEntity(1, 1)})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, []string{"spawned", "spawned", "destroyed"}, log)
}

func TestBusHandlerEmitsForNextFrame(t *testing.T) {
	b := NewBus()
	var seen []int
	Subscribe(b, func(p ping) {
		seen = append(seen, p.N)
		if p.N < 3 {
			Emit(b, ping{p.N + 1})
		}
	})
	Emit(b, ping{1})
	for range 3 {
		b.SwapBuffers()
		b.DispatchAll()
	}
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestBusConcurrentEmit(t *testing.T) {
	b := NewBus()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				Emit(b, ping{i})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, b.Pending())
}
