package split

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/netstring"
	"github.com/DEShawResearch/bloom123/store"
)

// Node is one node of a hashsplit tree as stored in a blob store.
// A leaf-level node points at chunk blobs via Leaves;
// an interior node points at other serialized Nodes via Nodes.
// Size is the total byte count of the chunks under the node.
type Node struct {
	Size   uint64
	Leaves []store.Ref
	Nodes  []store.Ref
}

// nodeTag begins every serialized Node,
// distinguishing tree nodes from the chunk blobs they point at.
const nodeTag = "tree"

// Encode produces the serialized form of n: four netstrings holding
// the tag, the decimal size, the concatenated leaf refs, and the
// concatenated child-node refs.
func (n *Node) Encode() []byte {
	out := netstring.Append(nil, []byte(nodeTag))
	out = netstring.Append(out, strconv.AppendUint(nil, n.Size, 10))
	out = netstring.Append(out, flatten(n.Leaves))
	return netstring.Append(out, flatten(n.Nodes))
}

// DecodeNode parses the serialized form of a Node produced by Encode.
func DecodeNode(b []byte) (*Node, error) {
	r := bytes.NewReader(b)

	tag, err := netstring.Read(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading node tag")
	}
	if !bytes.Equal(tag, []byte(nodeTag)) {
		return nil, errors.Errorf("bad node tag %q", tag)
	}

	sizeStr, err := netstring.Read(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading node size")
	}
	size, err := strconv.ParseUint(string(sizeStr), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing node size %q", sizeStr)
	}

	leaves, err := readRefs(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading leaf refs")
	}
	nodes, err := readRefs(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading child refs")
	}
	if r.Len() > 0 {
		return nil, errors.Errorf("%d trailing bytes after node", r.Len())
	}

	return &Node{Size: size, Leaves: leaves, Nodes: nodes}, nil
}

func flatten(refs []store.Ref) []byte {
	out := make([]byte, 0, len(refs)*store.RefLen)
	for _, ref := range refs {
		out = append(out, ref[:]...)
	}
	return out
}

func readRefs(r netstring.Reader) ([]store.Ref, error) {
	b, err := netstring.Read(r)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%store.RefLen != 0 {
		return nil, errors.Errorf("ref list length %d is not a multiple of %d", len(b), store.RefLen)
	}
	refs := make([]store.Ref, 0, len(b)/store.RefLen)
	for i := 0; i < len(b); i += store.RefLen {
		refs = append(refs, store.RefFromBytes(b[i:i+store.RefLen]))
	}
	return refs, nil
}
