package stego

import (
	"errors"
)

var errStepperExhausted = errors.New("more steps taken than channels in the binary")

// ChannelStepper walks the bit positions of a channel list in canonical
// order: channel by channel, and within a channel from its most
// significant bit down.
type ChannelStepper struct {
	channels             []Channel
	channel              int
	bitIndexOffset       int
	numBitsWritten       int
	totalBitsToBeWritten int
}

func makeChannelStepper(channels []Channel, totalBitsToBeWritten int) *ChannelStepper {
	return &ChannelStepper{
		channels:             channels,
		totalBitsToBeWritten: totalBitsToBeWritten,
	}
}

func (self *ChannelStepper) done() bool {
	return self.channel >= len(self.channels)
}

// shift is the position of the current bit within the current channel's value.
func (self *ChannelStepper) shift() int {
	return self.channels[self.channel].Width - 1 - self.bitIndexOffset
}

// read returns the bit at the current position.
func (self *ChannelStepper) read() (int, error) {
	if self.done() {
		return 0, errStepperExhausted
	}
	return getBit(self.channels[self.channel].Value, self.shift()), nil
}

// write stores bit at the current position of values, which is indexed like
// the stepper's channel list.
func (self *ChannelStepper) write(values []int, bit int) error {
	if self.done() {
		return errStepperExhausted
	}
	if bit == 0 {
		values[self.channel] = clearBit(values[self.channel], self.shift())
	} else {
		values[self.channel] = setBit(values[self.channel], self.shift())
	}
	return nil
}

func (self *ChannelStepper) step() error {
	self.numBitsWritten++
	self.bitIndexOffset++

	if !self.done() && self.bitIndexOffset >= self.channels[self.channel].Width {
		self.bitIndexOffset = 0
		self.channel++
	}

	if self.done() && self.numBitsWritten < self.totalBitsToBeWritten {
		return errStepperExhausted
	}
	return nil
}

// touched is the number of channels the stepper has entered so far.
func (self *ChannelStepper) touched() int {
	if self.bitIndexOffset > 0 {
		return self.channel + 1
	}
	return self.channel
}
