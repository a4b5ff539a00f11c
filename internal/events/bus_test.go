/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"testing"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlayLogged)
	other := bus.Subscribe(EventRulesReloaded)

	bus.Publish(EventPlayLogged, Payload{"song_id": "abc"})

	select {
	case payload := <-sub:
		if payload["song_id"] != "abc" {
			t.Errorf("payload = %v", payload)
		}
	default:
		t.Fatal("subscriber did not receive the event")
	}
	select {
	case <-other:
		t.Error("event delivered to a different event type")
	default:
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlayLogged)

	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventPlayLogged, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Errorf("buffered = %d, want full buffer %d with overflow dropped", len(sub), cap(sub))
	}
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sub := bus.Subscribe(EventCatalogUpdated)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(EventCatalogUpdated, Payload{"n": j})
			}
		}()
		go func() {
			defer wg.Done()
			bus.Unsubscribe(EventCatalogUpdated, sub)
		}()
	}
	wg.Wait()
}
