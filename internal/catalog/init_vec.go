//go:build sqlite_vec && cgo

package catalog

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension on the mattn/go-sqlite3
	// driver, giving the store a real vec_distance_cosine scalar function for
	// vectorSearch to order by. Builds without this tag fall back to the
	// brute-force Go cosine path in vector.go.
	vec.Auto()
}
