package roadgraph

// nameTrie is a map-keyed prefix tree over lower-cased street name
// characters. Every node — not just leaves — carries the ids of every
// street whose name passes through it, i.e. the set of streets whose name
// starts with the path from the root to that node. Modeled as a flat arena
// of nodes addressed by index rather than pointer-linked children, per the
// recommendation to avoid a pointer-cyclic prefix tree: destruction is
// linear (the whole arena is dropped at once) and there is nothing to walk
// on close.
type nameTrie struct {
	children []map[rune]int // children[nodeIdx][char] -> child nodeIdx
	streets  [][]int32      // streets[nodeIdx] -> street ids matching this prefix
}

const trieRoot = 0

func newNameTrie() *nameTrie {
	t := &nameTrie{}
	t.newNode() // root
	return t
}

func (t *nameTrie) newNode() int {
	t.children = append(t.children, make(map[rune]int))
	t.streets = append(t.streets, nil)
	return len(t.children) - 1
}

// Insert adds streetID under every prefix of the lower-cased name. The
// empty prefix at the root is deliberately excluded — empty prefix
// queries return empty, not every street (see Lookup).
func (t *nameTrie) Insert(name string, streetID int32) {
	node := trieRoot
	for _, c := range lowerRunes(name) {
		child, ok := t.children[node][c]
		if !ok {
			child = t.newNode()
			t.children[node][c] = child
		}
		node = child
		t.streets[node] = append(t.streets[node], streetID)
	}
}

// Lookup returns the street ids whose lower-cased name starts with the
// lower-cased prefix. An empty prefix or a prefix with no match both yield
// an empty (nil) slice, per the external contract.
func (t *nameTrie) Lookup(prefix string) []int32 {
	if prefix == "" {
		return nil
	}
	node := trieRoot
	for _, c := range lowerRunes(prefix) {
		child, ok := t.children[node][c]
		if !ok {
			return nil
		}
		node = child
	}
	return t.streets[node]
}

func lowerRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			runes[i] = r + ('a' - 'A')
		}
	}
	return runes
}
