package launcher

import (
	"math/rand/v2"

	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

// BuildPayload reads the section containing ws's entry point, obfuscates
// it with a freshly rolled set of fizz-buzz parameters, and renders the
// resulting C header text ready to be written alongside the launcher
// stub's sources.
func BuildPayload(ws *workspace.Workspace, generatedAt string) (string, error) {
	section, err := ws.File.SectionContaining(ws.File.Header.Entry)
	if err != nil {
		return "", err
	}

	raw, err := ws.ReadAt(section.Header.Addr, int(section.Header.Size))
	if err != nil {
		return "", err
	}

	params := Parameters{
		Fizz:   byte(1 + rand.IntN(255)),
		FizzUp: byte(rand.IntN(256)),
		Buzz:   byte(1 + rand.IntN(255)),
		BuzzUp: byte(rand.IntN(256)),
	}

	obfuscated := ApplyFizzbuzz(raw, params)

	return Render(HeaderData{
		GeneratedAt: generatedAt,
		Entry:       ws.File.Header.Entry,
		Params:      params,
		Payload:     obfuscated,
	})
}
