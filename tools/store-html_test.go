package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStoreHTML(t *testing.T) {

	out := bytes.NewBuffer(make([]byte, 0, 1024*128))

	err := ReadAndRenderStorePage("../stores/counter.yaml", []string{"store.css"}, out)

	if err != nil {
		t.Fatal(err)
	}

	html := out.String()
	for _, want := range []string{"counter", "INCREMENT", "bump", "doubled"} {
		if !strings.Contains(html, want) {
			t.Fatalf("missing %s in %s", want, html)
		}
	}
}
