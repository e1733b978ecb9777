package prompts

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.md
var embedded embed.FS

// Embedded returns the template files compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
