package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventsync/internal/model"
)

func enriched(headline, eventText string) model.EnrichedEvent {
	return model.EnrichedEvent{Event: model.Event{EntityID: "E1", Headline: headline, EventText: eventText}}
}

func TestFilter(t *testing.T) {
	p, err := Compile([]string{"stock buyback", "merger"})
	require.NoError(t, err)

	rows := []model.EnrichedEvent{
		enriched("company announces stock   buyback plan", "a"),
		enriched("quarterly earnings beat", "merger"),
		enriched("merger approved", "b"),
		enriched("", "c"),
	}

	out := Filter(rows, p)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].EventText)
	assert.Equal(t, "b", out[1].EventText)

	// Every kept row matches and every dropped row does not.
	kept := map[string]bool{}
	for _, r := range out {
		assert.True(t, p.Match(r.Headline))
		kept[r.EventText] = true
	}
	for _, r := range rows {
		if !kept[r.EventText] {
			assert.False(t, p.Match(r.Headline))
		}
	}
}

func TestFilter_Empty(t *testing.T) {
	p, err := Compile([]string{"merger"})
	require.NoError(t, err)
	assert.Empty(t, Filter(nil, p))
}
