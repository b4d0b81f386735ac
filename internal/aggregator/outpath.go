package aggregator

import (
	"fmt"
	"strings"
	"time"
)

// defaultTimeLayout renders nominal times in output paths when a
// {nominal_time} field gives no explicit layout.
const defaultTimeLayout = "20060102_1504"

// ComposeOutPath expands an output pattern such as
//
//	/data/mosaic/{composite}_{nominal_time:20060102_1504}_{areaname}.png
//
// Recognized fields are composite, areaname and nominal_time; the last
// takes an optional Go time layout after a colon.
func ComposeOutPath(pattern, product string, nominal time.Time, area string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] != '{' {
			out.WriteByte(pattern[i])
			i++
			continue
		}
		end := strings.IndexByte(pattern[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("output pattern %q: unclosed '{'", pattern)
		}
		field, layout, _ := strings.Cut(pattern[i+1:i+end], ":")
		switch field {
		case "composite":
			out.WriteString(product)
		case "areaname":
			out.WriteString(area)
		case "nominal_time":
			if layout == "" {
				layout = defaultTimeLayout
			}
			out.WriteString(nominal.Format(layout))
		default:
			return "", fmt.Errorf("output pattern %q: unknown field %q", pattern, field)
		}
		i += end + 1
	}
	return out.String(), nil
}
