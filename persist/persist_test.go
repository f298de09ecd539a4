package persist

import (
	"context"
	"testing"
)

func TestMem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMem()

	if _, have, err := m.Read(ctx, "nope"); err != nil {
		t.Fatal(err)
	} else if have {
		t.Fatal("found something that was never written")
	}

	if err := m.Write(ctx, "store", []byte(`{"likes":"tacos"}`)); err != nil {
		t.Fatal(err)
	}

	bs, have, err := m.Read(ctx, "store")
	if err != nil {
		t.Fatal(err)
	}
	if !have {
		t.Fatal("didn't find what was written")
	}
	if string(bs) != `{"likes":"tacos"}` {
		t.Fatalf("read %s", bs)
	}

	// Overwrite.
	if err := m.Write(ctx, "store", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if bs, _, _ = m.Read(ctx, "store"); string(bs) != `{}` {
		t.Fatalf("read %s after overwrite", bs)
	}
}

func TestFileMedium(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewFileMedium(t.TempDir())

	if _, have, err := m.Read(ctx, "nope"); err != nil {
		t.Fatal(err)
	} else if have {
		t.Fatal("found something that was never written")
	}

	if err := m.Write(ctx, "store", []byte(`{"count":1}`)); err != nil {
		t.Fatal(err)
	}

	bs, have, err := m.Read(ctx, "store")
	if err != nil {
		t.Fatal(err)
	}
	if !have {
		t.Fatal("didn't find what was written")
	}
	if string(bs) != `{"count":1}` {
		t.Fatalf("read %s", bs)
	}
}

func TestFileMediumOddKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewFileMedium(t.TempDir())

	// A key that'd be trouble as a literal filename.
	key := "../ups/../store"

	if err := m.Write(ctx, key, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if _, have, err := m.Read(ctx, key); err != nil || !have {
		t.Fatalf("have %v, err %v", have, err)
	}
}
