// Package conv formats numbers into caller-owned byte slices without
// allocating, for use from interrupt-adjacent code and the sim recorder.
package conv

const hexd = "0123456789ABCDEF"

// AppendByteHex appends "0x" and two uppercase hex digits of b.
func AppendByteHex(dst []byte, b byte) []byte {
	return append(dst, '0', 'x', hexd[b>>4], hexd[b&0xF])
}

// AppendUint appends the decimal form of n.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendField appends " key=n", or "key=n" when dst is empty.
func AppendField(dst []byte, key string, n uint64) []byte {
	if len(dst) > 0 {
		dst = append(dst, ' ')
	}
	dst = append(dst, key...)
	dst = append(dst, '=')
	return AppendUint(dst, n)
}
