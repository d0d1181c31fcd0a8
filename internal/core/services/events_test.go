package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

func TestEventBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string
	bus.Subscribe(func(ev domain.Event) { got = append(got, "a:"+string(ev.Kind)) })
	bus.Subscribe(func(ev domain.Event) { got = append(got, "b:"+string(ev.Kind)) })

	bus.Emit(domain.EventDatasetChanged)

	assert.Equal(t, []string{"a:dataset_changed", "b:dataset_changed"}, got)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(domain.Event) { calls++ })

	bus.Emit(domain.EventJobsChanged)
	unsubscribe()
	unsubscribe()
	bus.Emit(domain.EventJobsChanged)

	assert.Equal(t, 1, calls)
}

func TestEventBus_NilIsSafe(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Emit(domain.EventJobsChanged)
		bus.Notify("hello", nil)
		bus.Subscribe(func(domain.Event) {})()
	})
}

func TestEventBus_Notify(t *testing.T) {
	bus := NewEventBus()
	rec := recordEvents(bus)
	boom := errors.New("boom")

	bus.Notify("Save failed", boom)

	notices := rec.notices()
	assert.Len(t, notices, 1)
	assert.Equal(t, "Save failed", notices[0].Message)
	assert.ErrorIs(t, notices[0].Err, boom)
}

func TestEventBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewEventBus()
	late := 0
	bus.Subscribe(func(domain.Event) {
		bus.Subscribe(func(domain.Event) { late++ })
	})

	bus.Emit(domain.EventNotice)
	assert.Equal(t, 0, late)

	bus.Emit(domain.EventNotice)
	assert.Equal(t, 1, late)
}
