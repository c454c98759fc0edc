package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captureMonitor struct {
	errs   []error
	panics []any
	tags   []map[string]string
}

func (c *captureMonitor) CaptureException(err error, tags map[string]string) {
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}

func (c *captureMonitor) CapturePanic(v any, tags map[string]string) {
	c.panics = append(c.panics, v)
	c.tags = append(c.tags, tags)
}

func (c *captureMonitor) Flush(time.Duration) {}

func TestGlobalMonitor(t *testing.T) {
	m := &captureMonitor{}
	Init(m)
	defer Init(NopMonitor{})

	CaptureException(errors.New("boom"), map[string]string{"k": "v"})
	CaptureException(nil, nil)
	func() {
		defer func() {
			if r := recover(); r != nil {
				CapturePanic(r, nil)
			}
		}()
		panic("handler")
	}()
	Flush(time.Millisecond)

	assert.Len(t, m.errs, 1)
	assert.Equal(t, []any{"handler"}, m.panics)
	assert.Equal(t, "v", m.tags[0]["k"])
}

func TestInitIgnoresNil(t *testing.T) {
	Init(nil)
	assert.IsType(t, NopMonitor{}, current)
}
