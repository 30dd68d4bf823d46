package logging

import (
	"context"
	"testing"

	"github.com/DEShawResearch/bloom123/store/mem"
	"github.com/DEShawResearch/bloom123/testutil"
)

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(mem.New()), testutil.Data(32768))
}

func TestAnchors(t *testing.T) {
	testutil.Anchors(context.Background(), t, New(mem.New()))
}
