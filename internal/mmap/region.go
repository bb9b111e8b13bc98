package mmap

// Section returns the bytes [offset, offset+length) of the mapping, for
// example one collection of a data file. The slice is valid until Close.
func (m *Mapping) Section(offset, length int64) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil, ErrOutOfBounds
	}
	return m.data[offset : offset+length : offset+length], nil
}

// AdviseSection hints the kernel about how one section will be accessed.
func (m *Mapping) AdviseSection(offset, length int64, pattern AccessPattern) error {
	b, err := m.Section(offset, length)
	if err != nil {
		return err
	}
	return osAdvise(b, pattern)
}
