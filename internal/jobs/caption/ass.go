package caption

import (
	"fmt"
	"strings"
)

const (
	PlayResX = 1080
	PlayResY = 1920
	// popIn scales each caption from 120% to 100% over its first 50ms.
	popIn = `{\fscx120\fscy120\t(0,50,\fscx100\fscy100)}`
)

const assHeader = `[Script Info]
Title: Shorts Captions
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Pop,Impact,90,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,4,2,2,10,10,350,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// RenderASS writes a complete subtitle script for events.
func RenderASS(events []Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, assHeader, PlayResX, PlayResY)
	for i, ev := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Pop,,0,0,0,,%s%s",
			FormatTime(ev.Start), FormatTime(ev.End), popIn, sanitizeText(ev.Text))
	}
	return b.String()
}

// sanitizeText keeps recognised words from opening override blocks or
// breaking the event line.
func sanitizeText(text string) string {
	return strings.NewReplacer("{", "(", "}", ")", `\`, "/", "\n", " ", "\r", " ").Replace(text)
}
