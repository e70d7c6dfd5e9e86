package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterColumn(t *testing.T) {
	cases := []struct {
		event  CounterEvent
		column string
	}{
		{CounterEventOpen, "open_count"},
		{CounterEventClick, "click_count"},
		{CounterEventReply, "reply_count"},
		{CounterEventBounce, "bounce_count"},
		{CounterEventUnsubscribe, "unsubscribe_count"},
	}
	for _, tc := range cases {
		column, ok := counterColumn(tc.event)
		assert.True(t, ok)
		assert.Equal(t, tc.column, column)
	}

	_, ok := counterColumn(CounterEvent("delivered"))
	assert.False(t, ok)
}
