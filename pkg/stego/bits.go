package stego

func getBit(num int, index int) int {
	mask := 1 << index
	if num&mask == 0 {
		return 0
	}
	return 1
}

func setBit(num int, index int) int {
	mask := 1 << index
	return num | mask
}

func clearBit(num int, index int) int {
	mask := ^(1 << index)
	return num & mask
}

func getBitUint8(num uint8, index int) int {
	mask := uint8(1 << index)
	if num&mask == 0 {
		return 0
	}
	return 1
}

func setBitUint8(num uint8, index int) uint8 {
	mask := uint8(1 << index)
	return num | mask
}

// bitstream is the length header followed by the payload, both read most
// significant bit first.
type bitstream struct {
	header  uint32
	payload []byte
}

func newBitstream(payload []byte) bitstream {
	return bitstream{header: uint32(len(payload)), payload: payload}
}

// requiredBits is the size of the bitstream carrying an n-byte payload. It is
// computed in 64 bits so that it cannot wrap on 32-bit platforms.
func requiredBits(n int) int64 {
	return HeaderBits + int64(n)*8
}

// Len is only meaningful once requiredBits has been checked against a capacity
// that fits in an int.
func (s bitstream) Len() int {
	return HeaderBits + len(s.payload)*8
}

func (s bitstream) Bit(i int) int {
	if i < HeaderBits {
		if s.header&(1<<(HeaderBits-1-i)) == 0 {
			return 0
		}
		return 1
	}
	i -= HeaderBits
	return getBitUint8(s.payload[i/8], 7-i%8)
}
