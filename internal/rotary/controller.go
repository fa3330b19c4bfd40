package rotary

// Listener is implemented by the channel sections that rebind their encoders,
// rings and displays when the mode or sub-page changes.
type Listener interface {
	// ModeChanged is called after a switch to a different mode. s is always
	// on its first page.
	ModeChanged(s State)
	// ModeAdvanced is called when the current mode is selected again, or
	// when the sub-page is stepped. pressed is false for the release half of
	// a button gesture.
	ModeAdvanced(s State, pressed bool)
}

// PageCount returns how many sub-pages a mode currently has. It is asked at
// advance time because page counts come from the host (number of sends,
// remote-control pages of the selected device) and change at runtime.
type PageCount func(m Mode) int

// Controller is the rotary-mode state machine.
type Controller struct {
	current   State
	pages     PageCount
	listeners []Listener
}

// NewController starts in initial on its first page.
func NewController(initial Mode, pages PageCount) *Controller {
	if pages == nil {
		pages = func(Mode) int { return 1 }
	}
	return &Controller{
		current: Initial(initial),
		pages:   pages,
	}
}

// AddListener registers a section.
func (c *Controller) AddListener(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Current returns the current state.
func (c *Controller) Current() State { return c.current }

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.current.Mode() }

// Select handles a mode button edge.
//
//   - same mode: advance notification; a press also moves the sub-page
//     cursor forward, wrapping
//   - other mode, press: switch to it on page 0 and notify a mode change
//   - other mode, release: nothing
func (c *Controller) Select(m Mode, pressed bool) {
	if m == c.current.Mode() {
		if pressed {
			c.current = withPage(c.current, c.current.Page()+1, c.pages(m))
		}
		for _, l := range c.listeners {
			l.ModeAdvanced(c.current, pressed)
		}
		return
	}
	if !pressed {
		return
	}
	c.current = Initial(m)
	for _, l := range c.listeners {
		l.ModeChanged(c.current)
	}
}

// Step moves the sub-page cursor of the current mode by delta, wrapping.
func (c *Controller) Step(delta int) {
	if delta == 0 {
		return
	}
	m := c.current.Mode()
	next := withPage(c.current, c.current.Page()+delta, c.pages(m))
	if next == c.current {
		return
	}
	c.current = next
	for _, l := range c.listeners {
		l.ModeAdvanced(c.current, true)
	}
}

// Clamp re-applies the page count to the current state, e.g. after the host
// reports fewer sends than the cursor points at. It reports whether the
// page changed.
func (c *Controller) Clamp() bool {
	m := c.current.Mode()
	n := c.pages(m)
	if n <= 0 {
		n = 1
	}
	if c.current.Page() < n {
		return false
	}
	c.current = withPage(c.current, n-1, n)
	for _, l := range c.listeners {
		l.ModeAdvanced(c.current, true)
	}
	return true
}
