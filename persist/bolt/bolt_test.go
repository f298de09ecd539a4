package bolt

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMedium(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := NewMedium(filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err = m.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Close(ctx)

	if _, have, err := m.Read(ctx, "nope"); err != nil {
		t.Fatal(err)
	} else if have {
		t.Fatal("found something that was never written")
	}

	if err := m.Write(ctx, "store", []byte(`{"items":["a"]}`)); err != nil {
		t.Fatal(err)
	}

	bs, have, err := m.Read(ctx, "store")
	if err != nil {
		t.Fatal(err)
	}
	if !have {
		t.Fatal("didn't find what was written")
	}
	if string(bs) != `{"items":["a"]}` {
		t.Fatalf("read %s", bs)
	}
}
