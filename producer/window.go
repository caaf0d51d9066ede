package producer

// Window selects documents by position. A Limit of zero or less means no
// limit.
type Window struct {
	Offset int
	Limit  int
}

type cursor struct {
	w       Window
	seen    int
	emitted int
}

// admit reports whether the next document is emitted and whether loading
// can stop after it.
func (c *cursor) admit() (take, done bool) {
	c.seen++
	if c.seen <= c.w.Offset {
		return false, false
	}
	c.emitted++
	return true, c.w.Limit > 0 && c.emitted >= c.w.Limit
}

// exhausted reports whether the limit has been reached.
func (c *cursor) exhausted() bool {
	return c.w.Limit > 0 && c.emitted >= c.w.Limit
}
