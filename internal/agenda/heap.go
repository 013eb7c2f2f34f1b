package agenda

// groupHeap is a container/heap.Interface over one agenda-group's pending
// activations, ordered by the agenda's current strategy.
type groupHeap struct {
	items []*Activation
	less  func(a, b *Activation) bool
}

func (g *groupHeap) Len() int { return len(g.items) }

func (g *groupHeap) Less(i, j int) bool { return g.less(g.items[i], g.items[j]) }

func (g *groupHeap) Swap(i, j int) {
	g.items[i], g.items[j] = g.items[j], g.items[i]
	g.items[i].heapIndex = i
	g.items[j].heapIndex = j
}

func (g *groupHeap) Push(x any) {
	a := x.(*Activation)
	a.heapIndex = len(g.items)
	g.items = append(g.items, a)
}

func (g *groupHeap) Pop() any {
	old := g.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	g.items = old[:n-1]
	return it
}
