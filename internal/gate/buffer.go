package gate

import (
	"strings"

	"quiz-classroom/internal/models"
)

// DigitBuffer collects PIN digits up to models.PinLength. It knows nothing
// about how the digits are shown.
type DigitBuffer struct {
	digits [models.PinLength]byte
	n      int
}

// Append adds d when it is an ASCII digit and the buffer is not full. It
// reports whether the digit was taken.
func (b *DigitBuffer) Append(d byte) bool {
	if d < '0' || d > '9' || b.Full() {
		return false
	}
	b.digits[b.n] = d
	b.n++
	return true
}

func (b *DigitBuffer) Backspace() {
	if b.n > 0 {
		b.n--
	}
}

func (b *DigitBuffer) Clear() { b.n = 0 }

func (b *DigitBuffer) Len() int { return b.n }

func (b *DigitBuffer) Full() bool { return b.n == models.PinLength }

func (b *DigitBuffer) String() string { return string(b.digits[:b.n]) }

// Masked renders entered digits as '*' and empty slots as '_'.
func (b *DigitBuffer) Masked() string {
	return strings.Repeat("*", b.n) + strings.Repeat("_", models.PinLength-b.n)
}
