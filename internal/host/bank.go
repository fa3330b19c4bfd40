package host

// Bank is a window of Size items over a host list of Total items, starting
// at Position. Scrolling is clamped so the window never starts past the last
// full page or before zero.
type Bank struct {
	name  string
	model *Model

	position int
	size     int
	total    int

	observers []func(b *Bank)
}

func (b *Bank) Name() string  { return b.name }
func (b *Bank) Position() int { return b.position }
func (b *Bank) Size() int     { return b.size }
func (b *Bank) Total() int    { return b.total }

// Observe registers fn to run after the window moved or resized.
func (b *Bank) Observe(fn func(b *Bank)) {
	if fn != nil {
		b.observers = append(b.observers, fn)
	}
}

// CanScrollBackward reports whether the window is not at the start.
func (b *Bank) CanScrollBackward() bool { return b.position > 0 }

// CanScrollForward reports whether items exist past the window.
func (b *Bank) CanScrollForward() bool { return b.position+b.size < b.total }

// ScrollForward moves one page forward.
func (b *Bank) ScrollForward() error { return b.ScrollBy(b.pageStep()) }

// ScrollBackward moves one page back.
func (b *Bank) ScrollBackward() error { return b.ScrollBy(-b.pageStep()) }

func (b *Bank) pageStep() int {
	if b.size <= 0 {
		return 1
	}
	return b.size
}

// ScrollBy moves the window by n items, clamped, and asks the host to
// follow. A move that clamps to the current position is a no-op.
func (b *Bank) ScrollBy(n int) error {
	target := b.clamp(b.position + n)
	delta := target - b.position
	if delta == 0 {
		return nil
	}
	b.position = target
	b.notify()
	return b.model.send(Command{Op: OpScroll, Path: b.name, Delta: delta})
}

func (b *Bank) clamp(pos int) int {
	max := b.total - b.size
	if max < 0 {
		max = 0
	}
	if pos > max {
		pos = max
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

func (b *Bank) update(position, size, total int) bool {
	if size < 0 {
		size = 0
	}
	if total < 0 {
		total = 0
	}
	if b.position == position && b.size == size && b.total == total {
		return false
	}
	b.size = size
	b.total = total
	b.position = position
	if b.position < 0 {
		b.position = 0
	}
	b.notify()
	return true
}

func (b *Bank) notify() {
	for _, fn := range b.observers {
		fn(b)
	}
}
