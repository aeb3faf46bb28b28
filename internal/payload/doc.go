// Package payload parses the structured text that database-side code embeds
// in a raised exception.
//
// A payload is a message (or translation key) optionally followed by named
// parameters separated by pipes:
//
//	Access denied.
//	msg: %user%|user:who
//	"quoted | message with ""quotes"""|user:"value | with pipe"
//
// Double quotes use SQL-style escaping: a literal quote inside a quoted
// segment is written as two quotes. A pipe inside a message or value must be
// quoted.
//
// Parse is total. Input that does not follow the grammar is returned
// verbatim as the message with no parameters, so a caller always has
// something to show.
//
// Parameter names are returned wrapped in percent signs (%name%), the form
// translation catalogs use for placeholders.
package payload
