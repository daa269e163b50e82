package servo

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// dtWindow is how many recent loop periods feed the timing statistics.
const dtWindow = 256

// Stats summarises a running loop.
type Stats struct {
	Frames       uint64        `json:"frames"`        // Frames processed by Step
	Dropped      uint64        `json:"dropped"`       // Empty frames and read errors
	Found        uint64        `json:"found"`         // Frames with a target
	Commands     uint64        `json:"commands"`      // Moves handed to the actuator
	SendFailures uint64        `json:"send_failures"` // Moves the actuator rejected
	FoundRatio   float64       `json:"found_ratio"`   // Found / Frames
	DtMean       time.Duration `json:"dt_mean"`       // Mean loop period
	DtStdDev     time.Duration `json:"dt_stddev"`     // Loop period jitter
}

// collector accumulates Stats. Guarded by Loop.mu.
type collector struct {
	Stats
	dts  [dtWindow]float64
	n    int
	next int
}

func (c *collector) observe(res StepResult) {
	c.Frames++
	if res.Found {
		c.Found++
	}
	if res.Command != nil {
		c.Commands++
		if res.SendErr != nil {
			c.SendFailures++
		}
	}
	if res.Dt > 0 {
		c.dts[c.next] = res.Dt.Seconds()
		c.next = (c.next + 1) % dtWindow
		if c.n < dtWindow {
			c.n++
		}
	}
}

func (c *collector) snapshot() Stats {
	s := c.Stats
	if s.Frames > 0 {
		s.FoundRatio = float64(s.Found) / float64(s.Frames)
	}
	switch {
	case c.n == 1:
		s.DtMean = seconds(c.dts[0])
	case c.n > 1:
		mean, std := stat.MeanStdDev(c.dts[:c.n], nil)
		s.DtMean, s.DtStdDev = seconds(mean), seconds(std)
	}
	return s
}

func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}
