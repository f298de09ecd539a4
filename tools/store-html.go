package tools

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/Comcast/stash/interpreters/noop"
	"github.com/Comcast/stash/store"

	md "github.com/russross/blackfriday/v2"
	"gopkg.in/yaml.v2"
)

// RenderStoreHTML writes an HTML rendering of the store source's
// documentation, initial state, and tables.
func RenderStoreHTML(s *store.StoreSource, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="storeDoc doc">%s</div>`, md.Run([]byte(s.Doc)))

	if s.State != nil {
		state, err := yaml.Marshal(s.State)
		if err != nil {
			return err
		}
		f(`<div class="state"><h2>Initial state</h2>`)
		f(`<div class="code"><pre>%s</pre></div>`, state)
		f(`</div>`)
	}

	table := func(title, class string, fss map[string]*store.FuncSource) {
		if len(fss) == 0 {
			return
		}
		f(`<div class="%s"><h2>%s</h2><table>`, class, title)
		names := make([]string, 0, len(fss))
		for name := range fss {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fs := fss[name]
			f(`<tr class="entry"><td><span id="%s-%s" class="entryName">%s</span></td><td>`,
				class, name, name)
			if fs.Doc != "" {
				f(`<div class="entryDoc doc">%s</div>`, md.Run([]byte(fs.Doc)))
			}
			if fs.Interpreter != "" {
				f(`<div>interpreter: <span class="interpreter">%s</span></div>`, fs.Interpreter)
			}
			if fs.Source != nil {
				f(`<div class="code"><pre>%s</pre></div>`, fs.Source)
			}
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}

	table("Actions", "actions", s.Actions)
	table("Mutations", "mutations", s.Mutations)
	table("Getters", "getters", s.Getters)

	return nil
}

func RenderStorePage(s *store.StoreSource, out io.Writer, cssFiles []string) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/store-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, s.Name)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, s.Name)

	if err := RenderStoreHTML(s, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

func ReadAndRenderStorePage(filename string, cssFiles []string, out io.Writer) error {
	src, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	var ss store.StoreSource
	if err = yaml.Unmarshal(src, &ss); err != nil {
		return err
	}

	ni := noop.NewInterpreter()
	ni.Silent = true
	interpreters := store.InterpretersMap{
		"goja":           ni,
		"ecmascript":     ni,
		"ecmascript-5.1": ni,
		"noop":           ni,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A compile check, not an execution.
	if _, err = ss.Compile(ctx, interpreters); err != nil {
		return err
	}

	return RenderStorePage(&ss, out, cssFiles)
}
