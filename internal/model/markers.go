package model

// Markup markers shared by the selector, the redactor and the collector.
// They are part of the placeholder contract seen by the delegated click
// script, so changing them breaks already-rendered pages.
const (
	// ClassBlocked marks a live placeholder.
	ClassBlocked = "spoiler-element-blocked"
	// ClassRevealed marks content restored by the reader.
	ClassRevealed = "spoiler-revealed"
	// ClassProcessed marks an element the engine finished evaluating.
	ClassProcessed = "spoiler-processed"

	// AttrSpoilerID carries the RedactionRecord id on a placeholder.
	AttrSpoilerID = "data-spoiler-id"
	// AttrSource carries the detection source on a placeholder.
	AttrSource = "data-source"
	// AttrNoProcess opts an element out of every future scan.
	AttrNoProcess = "data-no-process"
)
