package views

import (
	"testing"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/stretchr/testify/assert"
)

func TestPublishNeverBlocks(t *testing.T) {
	h := NewChangeHub(nil)
	roads := h.add("roads")
	rivers := h.add("rivers")
	for i := 0; i < sendBuffer+10; i++ {
		h.Publish(models.ChangeEvent{Type: models.RecordCreate, Collection: "roads", ID: "F"})
	}
	assert.Len(t, roads.send, sendBuffer)
	assert.Empty(t, rivers.send)

	h.remove("roads", roads)
	assert.Zero(t, h.Subscribers("roads"))
	assert.Equal(t, 1, h.Subscribers("rivers"))
}
