package render

import (
	"fmt"
	"html"
	"strings"
)

// composeDocument builds the static HTML for one slide. Layers are painted
// as absolutely positioned elements; per-frame styles are applied later
// through the injected __slidecastApply shim so the document itself never
// changes between frames.
func composeDocument(job *Job) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("html,body{margin:0;padding:0;overflow:hidden;}")
	background := job.Background
	if background == "" {
		background = "#000000"
	}
	fmt.Fprintf(&b, "body{width:%dpx;height:%dpx;background:%s;}",
		job.Width, job.Height, html.EscapeString(background))
	b.WriteString(".layer{position:absolute;will-change:opacity,transform;}")
	b.WriteString("</style></head><body>")

	if strings.TrimSpace(job.MediaReference) != "" {
		fmt.Fprintf(&b,
			`<img id="slide-media" src="%s" style="position:absolute;left:0;top:0;width:%dpx;height:%dpx;object-fit:cover">`,
			html.EscapeString(job.MediaReference), job.Width, job.Height)
	}

	for i := range job.Layers {
		writeLayer(&b, &job.Layers[i])
	}

	b.WriteString("<script>window.__slidecastApply=function(styles){")
	b.WriteString("for(var id in styles){var el=document.getElementById('layer-'+id);if(!el)continue;")
	b.WriteString("var s=styles[id];el.style.opacity=s.opacity;el.style.transform=s.transform||'';")
	b.WriteString("el.style.visibility=s.hidden?'hidden':'visible';el.style.pointerEvents=s.hidden?'none':'auto';}};")
	b.WriteString("</script></body></html>")
	return b.String()
}

func writeLayer(b *strings.Builder, l *Layer) {
	style := fmt.Sprintf("left:%dpx;top:%dpx;width:%dpx;height:%dpx;z-index:%d;",
		l.X, l.Y, l.Width, l.Height, l.ZIndex)
	if l.FontSize > 0 {
		style += fmt.Sprintf("font-size:%dpx;", l.FontSize)
	}
	if l.Color != "" {
		style += "color:" + html.EscapeString(l.Color) + ";"
	}

	id := html.EscapeString(l.ID)
	switch l.Kind {
	case "image":
		fmt.Fprintf(b, `<img id="layer-%s" class="layer" src="%s" style="%s">`,
			id, html.EscapeString(l.Source), style)
	default:
		fmt.Fprintf(b, `<div id="layer-%s" class="layer" style="%s">%s</div>`,
			id, style, html.EscapeString(l.Text))
	}
}
