// Package stash provides guarded, observable, persisted state stores.
//
// The core code is in package 'store', and some command-line tools are in `cmd`.
//
// See https://github.com/Comcast/stash/blob/master/README.md for more.
package stash
