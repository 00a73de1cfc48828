package openapi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/faucetdb/sketch/internal/model"
)

const (
	noteHeader = "Note:"
	pkMarker   = "<pk/>"
)

var (
	backtickRef = regexp.MustCompile("`([^`]+)`")
	fkTag       = regexp.MustCompile(`<fk table='([^']*)' column='([^']*)'/>`)
	markerTags  = regexp.MustCompile(`<pk/>|<fk [^>]*/>`)
)

// Describe renders a column description the way introspection reports it:
// the column comment, then a "Note:" block carrying the primary key marker
// and the backtick-quoted foreign key target.
func Describe(comment string, pk bool, fk string) string {
	var b strings.Builder
	b.WriteString(comment)
	if !pk && fk == "" {
		return b.String()
	}
	if comment != "" {
		b.WriteString("\n\n")
	}
	b.WriteString(noteHeader)
	if pk {
		b.WriteString("\nThis is a Primary Key.")
		b.WriteString(pkMarker)
	}
	if fk != "" {
		fmt.Fprintf(&b, "\nThis is a Foreign Key to `%s`.", fk)
		if ref, ok := model.ParseRef(fk); ok {
			fmt.Fprintf(&b, "<fk table='%s' column='%s'/>", ref.Table, ref.Column)
		}
	}
	return b.String()
}

// ParseDescription extracts the comment, primary key flag and foreign key
// reference from a property description written by Describe or by a
// PostgREST-style introspection endpoint.
func ParseDescription(desc string) (comment string, pk bool, fk string) {
	pk = strings.Contains(desc, pkMarker)

	for _, m := range backtickRef.FindAllStringSubmatch(desc, -1) {
		if _, ok := model.ParseRef(m[1]); ok {
			fk = m[1]
			break
		}
	}
	if fk == "" {
		if m := fkTag.FindStringSubmatch(desc); m != nil && m[1] != "" && m[2] != "" {
			fk = m[1] + "." + m[2]
		}
	}

	comment = desc
	if i := strings.Index(comment, noteHeader+"\nThis is a "); i >= 0 {
		comment = comment[:i]
	}
	comment = strings.TrimSpace(markerTags.ReplaceAllString(comment, ""))
	return comment, pk, fk
}
