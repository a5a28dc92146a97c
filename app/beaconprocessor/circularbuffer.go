/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package beaconprocessor

// CircularBuffer keeps a fixed-size window of float values.
type CircularBuffer struct {
	windowSize int
	values     []float64
	counter    int
}

func NewCircularBuffer(windowSize int) *CircularBuffer {
	return &CircularBuffer{
		windowSize: windowSize,
		values:     make([]float64, windowSize),
	}
}

// GetCount returns the number of values in the window, capped at its size.
func (buff *CircularBuffer) GetCount() int {
	if buff.counter >= buff.windowSize {
		return buff.windowSize
	}
	return buff.counter
}

// GetMean returns the mean of the values currently in the window.
func (buff *CircularBuffer) GetMean() float64 {
	n := buff.GetCount()
	if n == 0 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		total += buff.values[i]
	}
	return total / float64(n)
}

// AddValue appends a value, overwriting the oldest once the window is full.
func (buff *CircularBuffer) AddValue(value float64) {
	buff.values[buff.counter%buff.windowSize] = value
	buff.counter++
}
