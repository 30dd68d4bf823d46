// Package split implements reading and writing of hashsplit trees in a blob store.
// See github.com/bobg/hashsplit for more information.
package split

import (
	"context"
	"io"

	"github.com/bobg/hashsplit"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
)

// Writer is an io.WriteCloser that splits its input with a hashsplit.Splitter,
// writing the chunks to a store as separate blobs.
// It additionally assembles those chunks into a tree with a hashsplit.TreeBuilder.
// The tree nodes are also written to the store as serialized Node objects.
// The ref of the tree root is available as Writer.Root after a call to Close.
type Writer struct {
	Ctx    context.Context
	Root   store.Ref // populated by Close
	st     store.Store
	spl    *hashsplit.Splitter
	tb     *hashsplit.TreeBuilder
	fanout uint
}

// NewWriter produces a new Writer writing to the given blob store.
// The given context object is stored in the Writer and used in subsequent calls to Write and Close.
// This is an antipattern but acceptable when an object must adhere to a context-free stdlib interface
// (https://github.com/golang/go/wiki/CodeReviewComments#contexts).
// Callers may replace the context object during the lifetime of the Writer as needed.
func NewWriter(ctx context.Context, st store.Store, opts ...Option) *Writer {
	tb := hashsplit.NewTreeBuilder()
	w := &Writer{
		Ctx:    ctx,
		st:     st,
		tb:     tb,
		fanout: 4,
	}
	spl := hashsplit.NewSplitter(func(bytes []byte, level uint) error {
		size := len(bytes)
		ref, _, err := st.Put(w.Ctx, bytes)
		if err != nil {
			return errors.Wrap(err, "writing split chunk to store")
		}
		tb.Add(ref[:], size, level/w.fanout)
		return nil
	})
	spl.MinSize = 1024
	spl.SplitBits = 14
	w.spl = spl
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements io.Writer.
func (w *Writer) Write(inp []byte) (int, error) {
	return w.spl.Write(inp)
}

// Close implements io.Closer.
func (w *Writer) Close() error {
	if w.tb == nil {
		return nil
	}
	err := w.spl.Close()
	if err != nil {
		return err
	}
	root := w.tb.Root()
	if root == nil {
		// No input; store an empty node so Root still refers to something readable.
		root = &hashsplit.Node{}
	}
	rootRef, err := storeTree(w.Ctx, w.st, root)
	if err != nil {
		return err
	}
	w.Root = rootRef
	w.tb = nil
	return nil
}

func storeTree(ctx context.Context, s store.Store, n *hashsplit.Node) (store.Ref, error) {
	tn := &Node{Size: n.Size}
	if len(n.Leaves) > 0 {
		for _, leaf := range n.Leaves {
			tn.Leaves = append(tn.Leaves, store.RefFromBytes(leaf))
		}
	} else {
		for _, child := range n.Nodes {
			childRef, err := storeTree(ctx, s, child)
			if err != nil {
				return store.Zero, err
			}
			tn.Nodes = append(tn.Nodes, childRef)
		}
	}
	ref, _, err := s.Put(ctx, tn.Encode())
	return ref, errors.Wrap(err, "storing tree node")
}

// Option adjusts the behavior of a Writer.
type Option func(*Writer)

// Bits sets the number of trailing rolling-hash zero bits that produce a chunk boundary.
func Bits(n uint) Option {
	return func(w *Writer) {
		w.spl.SplitBits = n
	}
}

// MinSize sets the minimum chunk size.
func MinSize(n int) Option {
	return func(w *Writer) {
		w.spl.MinSize = n
	}
}

// Fanout sets the target number of children per tree node.
func Fanout(n uint) Option {
	return func(w *Writer) {
		w.fanout = n
	}
}

// Write splits the content of r and writes it to s,
// returning the ref of the root tree node.
func Write(ctx context.Context, s store.Store, r io.Reader, opts ...Option) (store.Ref, error) {
	w := NewWriter(ctx, s, opts...)
	if _, err := io.Copy(w, r); err != nil {
		return store.Zero, err
	}
	err := w.Close()
	return w.Root, err
}

// Read reassembles the content of the tree rooted at ref, writing it to w.
func Read(ctx context.Context, g store.Getter, ref store.Ref, w io.Writer) error {
	node, err := getNode(ctx, g, ref)
	if err != nil {
		return err
	}
	return readNode(ctx, g, node, w)
}

func readNode(ctx context.Context, g store.Getter, n *Node, w io.Writer) error {
	if len(n.Nodes) > 0 {
		for _, ref := range n.Nodes {
			child, err := getNode(ctx, g, ref)
			if err != nil {
				return err
			}
			if err = readNode(ctx, g, child, w); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ref := range n.Leaves {
		blob, err := g.Get(ctx, ref)
		if err != nil {
			return errors.Wrapf(err, "getting chunk %s", ref)
		}
		if _, err = w.Write(blob); err != nil {
			return errors.Wrap(err, "writing chunk")
		}
	}
	return nil
}

func getNode(ctx context.Context, g store.Getter, ref store.Ref) (*Node, error) {
	blob, err := g.Get(ctx, ref)
	if err != nil {
		return nil, errors.Wrapf(err, "getting tree node %s", ref)
	}
	node, err := DecodeNode(blob)
	return node, errors.Wrapf(err, "decoding tree node %s", ref)
}

// Refs walks the tree rooted at ref,
// calling f for every ref involved:
// the root itself, every interior node, and every leaf chunk.
// Its signature matches gc.TraverseFunc,
// so garbage collections can protect whole trees.
func Refs(ctx context.Context, g store.Getter, ref store.Ref, f func(store.Ref) error) error {
	if err := f(ref); err != nil {
		return err
	}
	node, err := getNode(ctx, g, ref)
	if err != nil {
		return err
	}
	if len(node.Nodes) > 0 {
		for _, child := range node.Nodes {
			if err := Refs(ctx, g, child, f); err != nil {
				return err
			}
		}
		return nil
	}
	for _, leaf := range node.Leaves {
		if err := f(leaf); err != nil {
			return err
		}
	}
	return nil
}
