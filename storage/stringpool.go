package storage

// StringPool deduplicates strings for the on-disk chat encoding. Every
// distinct string is stored once and referenced elsewhere by its index.
// Indices are assigned in first-insertion order, so Finalize returns the
// i-th distinct string at position i.
type StringPool struct {
	indices map[string]int
	order   []string
}

func NewStringPool() *StringPool {
	return &StringPool{indices: make(map[string]int)}
}

// Add returns the pool index for text, inserting it if unseen. Adding the
// same string twice returns the same index.
func (p *StringPool) Add(text string) int {
	if idx, ok := p.indices[text]; ok {
		return idx
	}
	idx := len(p.order)
	p.indices[text] = idx
	p.order = append(p.order, text)
	return idx
}

// Check returns the index of text, or -1 if it was never added.
func (p *StringPool) Check(text string) int {
	if idx, ok := p.indices[text]; ok {
		return idx
	}
	return -1
}

// Finalize returns the distinct strings in insertion order.
func (p *StringPool) Finalize() []string {
	return p.order
}
