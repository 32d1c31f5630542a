package launcher

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// HeaderData is everything the C header template needs to render a
// payload ready for the 32-bit launcher stub to unpack.
type HeaderData struct {
	GeneratedAt string
	Entry       uint64
	Params      Parameters
	Payload     []byte
}

var headerTemplate = template.Must(template.New("payload-header").Funcs(template.FuncMap{
	"hex2": hexByte,
}).Parse(`/*
 * Generated {{.GeneratedAt}} - do not edit by hand.
 */
#ifndef PAYLOAD_H
#define PAYLOAD_H

#define PAYLOAD_ENTRY 0x{{printf "%x" .Entry}}
#define PAYLOAD_SIZE {{len .Payload}}

#define FIZZ    0x{{hex2 .Params.Fizz}}
#define FIZZ_UP 0x{{hex2 .Params.FizzUp}}
#define BUZZ    0x{{hex2 .Params.Buzz}}
#define BUZZ_UP 0x{{hex2 .Params.BuzzUp}}

/* Fetches this function's own load address via the classic call/pop
 * trick, so the payload bytes below can be addressed relative to it
 * without relying on a fixed load base. */
#define PAYLOAD_BYTES_DEFINITION() \
    static unsigned char payload_bytes[PAYLOAD_SIZE] = { {{range $i, $b := .Payload}}{{if $i}}, {{end}}0x{{hex2 $b}}{{end}} }; \
    static unsigned char *payload_rip(void) { \
        unsigned char *rip; \
        __asm__("call 1f\n1: pop %0" : "=r"(rip)); \
        return rip; \
    }

#endif /* PAYLOAD_H */
`))

// Render produces the full C header text for d.
func Render(d HeaderData) (string, error) {
	var sb strings.Builder
	if err := headerTemplate.Execute(&sb, d); err != nil {
		return "", errors.Wrap(err, "launcher: rendering payload header")
	}
	return sb.String(), nil
}

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}
