package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/Comcast/stash/store"
	"github.com/Comcast/stash/tools"

	"github.com/jsccast/yaml"
)

func main() {

	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "yamltojson":
		pretty := false

		switch len(os.Args) {
		case 2:
		case 3:
			if 2 < len(os.Args) {
				switch os.Args[2] {
				case "-p":
					pretty = true
				default:
					panic(fmt.Sprintf("unsupported args: %v", os.Args[1:]))
				}
			}
		default:
			panic(fmt.Sprintf("unsupported args: %v", os.Args[1:]))
		}

		bs, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if len(bs) == 0 {
			bs = []byte(DefaultStoreYAML)
		}

		var s *store.StoreSource

		if err = yaml.Unmarshal(bs, &s); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if pretty {
			bs, err = json.MarshalIndent(&s, "  ", "  ")
		} else {
			bs, err = json.Marshal(&s)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if _, err = os.Stdout.Write(bs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "jsontoyaml":

		bs, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		var s *store.StoreSource

		if err = json.Unmarshal(bs, &s); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if bs, err = yaml.Marshal(&s); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if _, err = os.Stdout.Write(bs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "html":

		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "error: html needs a store source filename\n")
			os.Exit(1)
		}

		var css []string
		if 3 < len(os.Args) {
			css = os.Args[3:]
		}

		if err := tools.ReadAndRenderStorePage(os.Args[2], css, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Printf("Unknown subcommand \"%s\"\n", os.Args[1])
		Usage()
		os.Exit(1)
	}
}

func Usage() {
	fmt.Printf("Subcommands:\n\n")
	fmt.Println("Usage of yamltojson:")
	// go vet says "Println call ends with newline"!
	fmt.Printf("  -p    pretty-print\n\n")
	fmt.Printf("Usage of jsontoyaml: (no arguments)\n\n")
	fmt.Printf("Usage of html: html FILENAME [CSSFILE ...]\n\n")
}

var DefaultStoreYAML = `state:
`
