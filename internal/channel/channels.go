package channel

import (
	"sync"

	"pulsefeed/models"
)

// Channels owns the bounded frame buffer between the stream reader and
// the router. There is exactly one stream, so one channel suffices.
type Channels struct {
	Frames chan models.RawFrame

	closeOnce sync.Once
}

func NewChannels(frameBufferSize int) *Channels {
	return &Channels{
		Frames: make(chan models.RawFrame, frameBufferSize),
	}
}

func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Frames)
	})
}
